package engine

import "github.com/sksmjain/clob-tcp-engine/wire"

// Side represents the direction of an order.
type Side int

const (
	// Buy indicates a bid order.
	Buy Side = iota
	// Sell indicates an ask order.
	Sell
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Wire returns the on-the-wire encoding of the side.
func (s Side) Wire() uint8 {
	if s == Buy {
		return wire.SideBuy
	}
	return wire.SideSell
}

// TimeInForce controls what happens to the unfilled remainder of an order.
type TimeInForce int

const (
	// GTC rests the remainder on the book until filled or cancelled.
	GTC TimeInForce = iota
	// IOC discards any remainder immediately after matching.
	IOC
)

// Order is a limit order. Identity is (ClientID, ClOrdID), which is
// connection-independent. Seq is the arrival sequence assigned by the
// engine; it fixes time priority without any wall clock.
type Order struct {
	ClientID  uint64
	ClOrdID   uint64
	Side      Side
	Price     int64
	Remaining int64
	Tif       TimeInForce
	Seq       uint64
}

// CommandKind tags the command variants.
type CommandKind int

const (
	// CmdNewOrder places a new order.
	CmdNewOrder CommandKind = iota
	// CmdCancel removes a resting order by (client_id, cl_ord_id).
	CmdCancel
)

// Command is one unit of work for the engine. Sink identifies where private
// events for this command are delivered; it travels with the command so the
// engine can answer without a global connection registry.
type Command struct {
	Kind     CommandKind
	Order    wire.NewOrder
	ClientID uint64
	ClOrdID  uint64
	Sink     *Sink
}

// PublicEvent is a market-data event stamped with the engine's global emit
// sequence. A gap in Seq tells a subscriber that it was too slow and events
// were dropped from its buffer.
type PublicEvent struct {
	Seq uint64
	Msg wire.Message
}

// Sink is the single-producer single-consumer private event queue for one
// connection. The engine sends without ever blocking: a full sink means the
// connection is stalled or already gone, and delivery to it is a no-op.
type Sink struct {
	ch chan wire.Message
}

// NewSink builds a sink with the given buffer size.
func NewSink(buffer int) *Sink {
	return &Sink{ch: make(chan wire.Message, buffer)}
}

// TrySend enqueues msg unless the buffer is full. It reports whether the
// event was accepted.
func (s *Sink) TrySend(msg wire.Message) bool {
	if s == nil {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Events exposes the receive end for the owning connection's write loop.
func (s *Sink) Events() <-chan wire.Message {
	return s.ch
}
