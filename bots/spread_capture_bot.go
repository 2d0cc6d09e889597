package bots

import (
	"context"
	"time"

	"github.com/sksmjain/clob-tcp-engine/wire"
)

// SpreadCaptureBot crosses the book with IOC orders whenever the observed
// spread is wide enough to be worth taking, consuming the stale side.
type SpreadCaptureBot struct {
	Interval  time.Duration
	MinSpread int64
	Quantity  int64
}

func NewSpreadCaptureBot() *SpreadCaptureBot {
	return &SpreadCaptureBot{
		Interval:  500 * time.Millisecond,
		MinSpread: 3,
		Quantity:  1,
	}
}

func (b *SpreadCaptureBot) Start(ctx context.Context, client *GatewayClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.capture(ctx, client)
		}
	}
}

func (b *SpreadCaptureBot) capture(ctx context.Context, client *GatewayClient) {
	bid, ask := client.TopOfBook()
	if bid <= 0 || ask <= 0 {
		return
	}
	spread := ask - bid
	if spread < b.MinSpread*client.Tick() {
		return
	}

	// Lift the ask; the IOC remainder evaporates if the level moved.
	_, _ = client.SubmitOrder(ctx, wire.SideBuy, ask, b.Quantity, wire.TifIOC)
}
