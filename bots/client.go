package bots

import (
	"context"
	"sync"
	"time"

	"github.com/sksmjain/clob-tcp-engine/client"
	"github.com/sksmjain/clob-tcp-engine/wire"
)

// GatewayClient wraps a protocol connection with rate limiting, cl_ord_id
// allocation, and a market view rebuilt from the public book-delta stream.
// One event pump goroutine (Run) keeps the view current for all bots sharing
// the client.
type GatewayClient struct {
	cl       *client.Client
	clientID uint64
	tick     int64
	throttle <-chan time.Time

	mu      sync.Mutex
	ordSeq  uint64
	bids    map[int64]int64
	asks    map[int64]int64
	fills   int64
	volume  int64
}

// NewGatewayClient dials the gateway and prepares a client for bots to share.
func NewGatewayClient(addr string, clientID uint64, tick int64, throttle <-chan time.Time) (*GatewayClient, error) {
	cl, err := client.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &GatewayClient{
		cl:       cl,
		clientID: clientID,
		tick:     tick,
		throttle: throttle,
		bids:     make(map[int64]int64),
		asks:     make(map[int64]int64),
	}, nil
}

// Run pumps gateway events until the context is cancelled, folding book
// deltas into the market view and tallying this client's fills.
func (c *GatewayClient) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		c.cl.Close()
	}()

	for {
		msg, err := c.cl.ReadEvent()
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case wire.BookDelta:
			c.applyDelta(m)
		case wire.Trade:
			c.applyTrade(m)
		}
	}
}

func (c *GatewayClient) applyDelta(d wire.BookDelta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	side := c.bids
	if d.Side == wire.SideSell {
		side = c.asks
	}
	if d.LevelQty == 0 {
		delete(side, d.Price)
	} else {
		side[d.Price] = d.LevelQty
	}
}

func (c *GatewayClient) applyTrade(t wire.Trade) {
	if t.TakerClientID != c.clientID && t.MakerClientID != c.clientID {
		return
	}
	// Own taker trades arrive twice (private fill plus the public copy), so
	// the tally is an upper bound; good enough for supervisor reporting.
	c.mu.Lock()
	c.fills++
	c.volume += t.Qty
	c.mu.Unlock()
}

// SubmitOrder waits for a throttle slot, allocates a cl_ord_id, and sends
// the order.
func (c *GatewayClient) SubmitOrder(ctx context.Context, side uint8, price, qty int64, tif uint8) (uint64, error) {
	if err := c.waitThrottle(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.ordSeq++
	id := c.ordSeq
	c.mu.Unlock()

	if price > 0 && c.tick > 1 && price%c.tick != 0 {
		price = (price / c.tick) * c.tick
	}
	err := c.cl.NewOrder(wire.NewOrder{
		ClientID: c.clientID,
		ClOrdID:  id,
		Side:     side,
		Price:    price,
		Qty:      qty,
		Tif:      tif,
	})
	return id, err
}

// CancelOrder requests removal of one of this client's orders.
func (c *GatewayClient) CancelOrder(ctx context.Context, clOrdID uint64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return c.cl.Cancel(c.clientID, clOrdID)
}

func (c *GatewayClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

// TopOfBook returns the best bid and ask as reconstructed from the public
// stream; a zero price means that side is empty (or not yet observed).
func (c *GatewayClient) TopOfBook() (bid, ask int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.bids {
		if p > bid {
			bid = p
		}
	}
	for p := range c.asks {
		if ask == 0 || p < ask {
			ask = p
		}
	}
	return bid, ask
}

// Stats reports fills observed for this client and the traded volume.
func (c *GatewayClient) Stats() (fills, volume int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fills, c.volume
}

// Tick reports the configured price increment.
func (c *GatewayClient) Tick() int64 {
	return c.tick
}

// Close shuts the underlying connection down.
func (c *GatewayClient) Close() error {
	return c.cl.Close()
}
