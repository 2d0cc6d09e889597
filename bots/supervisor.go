package bots

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Supervisor orchestrates multiple bots over one shared gateway client.
type Supervisor struct {
	bots     []Bot
	client   *GatewayClient
	throttle *time.Ticker
	log      *zap.SugaredLogger
}

// NewSupervisor dials the gateway and builds a default swarm: two makers per
// side plus a spread-capture taker.
func NewSupervisor(addr string, clientID uint64, basePrice, tick int64, orderInterval time.Duration, log *zap.SugaredLogger) (*Supervisor, error) {
	throttle := time.NewTicker(orderInterval)
	client, err := NewGatewayClient(addr, clientID, tick, throttle.C)
	if err != nil {
		throttle.Stop()
		return nil, err
	}
	bots := []Bot{
		NewRandomBidBot(basePrice),
		NewRandomAskBot(basePrice),
		NewRandomBidBot(basePrice),
		NewRandomAskBot(basePrice),
		NewSpreadCaptureBot(),
	}
	return &Supervisor{
		bots:     bots,
		client:   client,
		throttle: throttle,
		log:      log,
	}, nil
}

// Start launches the event pump and all bots, reporting stats until the
// context is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(2 * time.Second)
	defer logTicker.Stop()
	defer s.throttle.Stop()
	defer s.client.Close()

	go s.client.Run(ctx)
	for _, bot := range s.bots {
		b := bot
		go b.Start(ctx, s.client)
	}

	for {
		select {
		case <-ctx.Done():
			fills, volume := s.client.Stats()
			s.log.Infow("final stats", "fills", fills, "volume", volume)
			return
		case <-logTicker.C:
			bid, ask := s.client.TopOfBook()
			fills, volume := s.client.Stats()
			s.log.Infow("bots", "bid", bid, "ask", ask, "fills", fills, "volume", volume)
		}
	}
}
