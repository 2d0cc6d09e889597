// Package bots contains simple trading agents that exercise a live gateway
// through the wire protocol: random liquidity makers and a spread-capture
// taker, orchestrated by a supervisor. They double as interactive smoke
// clients for the core.
package bots

import "context"

// Bot represents a trading agent that can be run under a supervisor.
type Bot interface {
	Start(ctx context.Context, client *GatewayClient)
}
