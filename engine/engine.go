// Package engine implements the deterministic matching core: a single
// goroutine that owns the order book, consumes commands from one channel,
// and emits immutable events. It performs no I/O and reads no clock, so a
// given command sequence always produces the same event sequence.
package engine

import (
	"github.com/sksmjain/clob-tcp-engine/wire"
)

// Reject reasons. These travel to clients verbatim, so they stay short and
// stable.
const (
	ReasonBadPrice = "price must be positive"
	ReasonBadQty   = "quantity must be positive"
	ReasonBadSide  = "unknown side"
	ReasonBadTif   = "unknown time in force"
	ReasonNotFound = "not found"
)

// Config controls engine channel sizing.
type Config struct {
	// CommandBuffer is the depth of the inbound command channel. Producers
	// block when it is full; the engine itself never does.
	CommandBuffer int
	// PublicBuffer is the depth of the outbound market-data channel drained
	// by the fan-out goroutine.
	PublicBuffer int
}

func (c Config) withDefaults() Config {
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = 8192
	}
	if c.PublicBuffer <= 0 {
		c.PublicBuffer = 8192
	}
	return c
}

// Engine applies commands against the book one at a time, run to completion.
// All book mutation happens on the goroutine started by Start.
type Engine struct {
	book    *Book
	cmds    chan Command
	public  chan PublicEvent
	arrival uint64
	emitSeq uint64
	done    chan struct{}
}

// New builds an engine around an empty book. Call Start to begin processing.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		book:   NewBook(),
		cmds:   make(chan Command, cfg.CommandBuffer),
		public: make(chan PublicEvent, cfg.PublicBuffer),
		done:   make(chan struct{}),
	}
}

// Commands is the single serialization point: every gateway handler sends
// here, and admission order is processing order.
func (e *Engine) Commands() chan<- Command {
	return e.cmds
}

// Public exposes the ordered market-data stream. Exactly one consumer (the
// fan-out) must drain it.
func (e *Engine) Public() <-chan PublicEvent {
	return e.public
}

// Start launches the processing goroutine.
func (e *Engine) Start() {
	go e.run()
}

// Stop closes the command channel and waits for the loop to drain. No
// producer may send after Stop.
func (e *Engine) Stop() {
	close(e.cmds)
	<-e.done
}

func (e *Engine) run() {
	for cmd := range e.cmds {
		switch cmd.Kind {
		case CmdNewOrder:
			e.processNewOrder(cmd)
		case CmdCancel:
			e.processCancel(cmd)
		}
	}
	close(e.public)
	close(e.done)
}

// emitPublic stamps the event with the global emit sequence. The send blocks
// only against the fan-out goroutine, which never performs I/O, so the
// matching path cannot be stalled by any client.
func (e *Engine) emitPublic(msg wire.Message) {
	e.emitSeq++
	e.public <- PublicEvent{Seq: e.emitSeq, Msg: msg}
}

func (e *Engine) processNewOrder(cmd Command) {
	req := cmd.Order
	if reason, ok := validate(req); !ok {
		cmd.Sink.TrySend(wire.Reject{ClOrdID: req.ClOrdID, Reason: reason})
		return
	}

	e.arrival++
	taker := &Order{
		ClientID:  req.ClientID,
		ClOrdID:   req.ClOrdID,
		Side:      Side(req.Side),
		Price:     req.Price,
		Remaining: req.Qty,
		Tif:       TimeInForce(req.Tif),
		Seq:       e.arrival,
	}

	opp := taker.Side.Opposite()
	for taker.Remaining > 0 {
		best := e.book.bestLevel(opp)
		if best == nil || !crosses(taker, best.price) {
			break
		}
		maker := best.head()
		qty := min64(taker.Remaining, maker.Remaining)
		price := best.price
		makerClient := maker.ClientID
		taker.Remaining -= qty
		levelQty := e.book.ReduceHead(opp, qty)

		trade := wire.Trade{
			Price:         price,
			Qty:           qty,
			TakerClientID: taker.ClientID,
			MakerClientID: makerClient,
		}
		cmd.Sink.TrySend(trade)
		e.emitPublic(trade)
		e.emitPublic(wire.BookDelta{Side: opp.Wire(), Price: price, LevelQty: levelQty})
	}

	if taker.Remaining > 0 && taker.Tif == GTC {
		e.book.Insert(taker)
		e.emitPublic(wire.BookDelta{
			Side:     taker.Side.Wire(),
			Price:    taker.Price,
			LevelQty: e.book.LevelQty(taker.Side, taker.Price),
		})
	}

	// Ack means "processed", whether the order filled, rested, or was an
	// IOC remainder that evaporated.
	cmd.Sink.TrySend(wire.Ack{ClOrdID: req.ClOrdID})
}

func (e *Engine) processCancel(cmd Command) {
	o, ok := e.book.Remove(cmd.ClientID, cmd.ClOrdID)
	if !ok {
		// Cancelling an order that already filled or was already cancelled
		// is a normal outcome.
		cmd.Sink.TrySend(wire.Reject{ClOrdID: cmd.ClOrdID, Reason: ReasonNotFound})
		return
	}
	cmd.Sink.TrySend(wire.Ack{ClOrdID: cmd.ClOrdID})
	e.emitPublic(wire.BookDelta{
		Side:     o.Side.Wire(),
		Price:    o.Price,
		LevelQty: e.book.LevelQty(o.Side, o.Price),
	})
}

func validate(req wire.NewOrder) (string, bool) {
	if req.Price <= 0 {
		return ReasonBadPrice, false
	}
	if req.Qty <= 0 {
		return ReasonBadQty, false
	}
	if req.Side != wire.SideBuy && req.Side != wire.SideSell {
		return ReasonBadSide, false
	}
	if req.Tif != wire.TifGTC && req.Tif != wire.TifIOC {
		return ReasonBadTif, false
	}
	return "", true
}

// crosses reports whether the taker's limit reaches the opposing price: a
// buy crosses at or above the best ask, a sell at or below the best bid.
func crosses(taker *Order, oppPrice int64) bool {
	if taker.Side == Buy {
		return taker.Price >= oppPrice
	}
	return taker.Price <= oppPrice
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
