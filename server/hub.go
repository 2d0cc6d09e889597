package server

import (
	"sync"

	"github.com/sksmjain/clob-tcp-engine/engine"
)

// subscription is one connection's view of the public market-data stream.
type subscription struct {
	ch chan engine.PublicEvent
}

// C is the receive end drained by the connection's write loop. Events arrive
// in the engine's global emit order; a jump in PublicEvent.Seq means events
// were dropped because this subscriber fell behind.
func (s *subscription) C() <-chan engine.PublicEvent {
	return s.ch
}

// hub fans the public stream out to every connected handler. Delivery is
// non-blocking: a subscriber whose buffer is full loses the event, never the
// other subscribers and never the engine.
type hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscription]struct{})}
}

func (h *hub) Subscribe(buffer int) *subscription {
	sub := &subscription{ch: make(chan engine.PublicEvent, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub) Unsubscribe(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.ch)
}

func (h *hub) Broadcast(ev engine.PublicEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
