package bots

import (
	"context"
	"math/rand"
	"time"

	"github.com/sksmjain/clob-tcp-engine/wire"
)

// RandomAskBot places short-lived limit asks around the mid price.
type RandomAskBot struct {
	Interval   time.Duration
	Lifetime   time.Duration
	Quantity   int64
	RangeTicks int64
	BasePrice  int64
	rand       *rand.Rand
}

func NewRandomAskBot(basePrice int64) *RandomAskBot {
	return &RandomAskBot{
		Interval:   200 * time.Millisecond,
		Lifetime:   2 * time.Second,
		Quantity:   1,
		RangeTicks: 5,
		BasePrice:  basePrice,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *RandomAskBot) Start(ctx context.Context, client *GatewayClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.placeAsk(ctx, client)
		}
	}
}

func (b *RandomAskBot) placeAsk(ctx context.Context, client *GatewayClient) {
	bid, ask := client.TopOfBook()
	mid := midPrice(bid, ask)
	if mid <= 0 {
		mid = b.BasePrice
	}

	delta := b.rand.Int63n(b.RangeTicks+1) * client.Tick()
	price := mid + delta

	id, err := client.SubmitOrder(ctx, wire.SideSell, price, b.Quantity, wire.TifGTC)
	if err != nil {
		return
	}

	go b.cancelAfter(ctx, client, id)
}

func (b *RandomAskBot) cancelAfter(ctx context.Context, client *GatewayClient, clOrdID uint64) {
	timer := time.NewTimer(b.Lifetime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		_ = client.CancelOrder(context.Background(), clOrdID)
	}
}
