// Package server is the connection gateway: it accepts TCP clients, decodes
// frames into engine commands, and writes private and broadcast events back.
// Handlers do all the I/O; the engine goroutine never touches a socket.
package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sksmjain/clob-tcp-engine/engine"
	"github.com/sksmjain/clob-tcp-engine/wire"
)

const (
	defaultPrivateBuffer   = 1024
	defaultBroadcastBuffer = 1024
	readChunkBytes         = 4096
)

// pongText is the fixed ACK payload for PING frames.
const pongText = "pong"

// Config controls gateway buffers and the listen address.
type Config struct {
	ListenAddr string
	// PrivateBuffer sizes each connection's private event queue.
	PrivateBuffer int
	// BroadcastBuffer sizes each connection's market-data queue. Slow
	// consumers lose events from this queue and see a sequence gap.
	BroadcastBuffer int
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9000"
	}
	if c.PrivateBuffer <= 0 {
		c.PrivateBuffer = defaultPrivateBuffer
	}
	if c.BroadcastBuffer <= 0 {
		c.BroadcastBuffer = defaultBroadcastBuffer
	}
	return c
}

// Server owns the listener, the per-connection handlers, and the fan-out of
// the engine's public stream.
type Server struct {
	cfg Config
	eng *engine.Engine
	hub *hub
	log *zap.Logger

	ln      net.Listener
	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool
	wg      sync.WaitGroup
	fanDone chan struct{}
}

// New wires a gateway in front of an already-started engine.
func New(cfg Config, eng *engine.Engine, log *zap.Logger) *Server {
	return &Server{
		cfg:     cfg.withDefaults(),
		eng:     eng,
		hub:     newHub(),
		log:     log,
		conns:   make(map[net.Conn]struct{}),
		fanDone: make(chan struct{}),
	}
}

// Listen binds the configured address. Addr is valid afterwards, which lets
// tests listen on ":0" and discover the port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr reports the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve runs the fan-out and the accept loop until Close. It returns nil on
// a clean shutdown.
func (s *Server) Serve() error {
	go s.fanOut()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Close stops accepting, tears down every live connection, and waits for
// handlers to finish. The engine is left running; stopping it is the
// caller's job once no producer remains.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if s.ln != nil {
		s.ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

// fanOut drains the engine's public stream into the hub, preserving the
// global emit order for every subscriber. It performs no I/O, so the engine
// side of the channel can never stall on a client.
func (s *Server) fanOut() {
	defer close(s.fanDone)
	for ev := range s.eng.Public() {
		s.hub.Broadcast(ev)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handle runs one connection: a read loop here and a write loop goroutine,
// joined by a teardown signal. Commands already forwarded keep executing
// after teardown; their private events land in an abandoned sink, which is
// a no-op.
func (s *Server) handle(conn net.Conn) {
	log := s.log.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	log.Info("client connected")

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	sink := engine.NewSink(s.cfg.PrivateBuffer)
	sub := s.hub.Subscribe(s.cfg.BroadcastBuffer)

	done := make(chan struct{})
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			close(done)
			conn.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(conn, sink, sub, done, log)
		teardown()
	}()

	err := s.readLoop(conn, sink, done)
	teardown()
	wg.Wait()

	s.hub.Unsubscribe(sub)
	s.untrack(conn)

	if err != nil {
		log.Warn("client disconnected", zap.Error(err))
	} else {
		log.Info("client disconnected")
	}
}

// readLoop assembles frames across reads, keeping any unconsumed remainder,
// and forwards decoded commands to the engine. It returns nil on a clean
// peer close and the framing error on a protocol violation.
func (s *Server) readLoop(conn net.Conn, sink *engine.Sink, done <-chan struct{}) error {
	buf := make([]byte, 0, 16*1024)
	chunk := make([]byte, readChunkBytes)

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			consumed := 0
			for {
				msg, adv, derr := wire.Decode(buf[consumed:])
				if derr != nil {
					return derr
				}
				if msg == nil {
					break
				}
				consumed += adv
				if ferr := s.dispatch(msg, sink, done); ferr != nil {
					return ferr
				}
			}
			if consumed > 0 {
				rest := copy(buf, buf[consumed:])
				buf = buf[:rest]
			}
		}
		if err != nil {
			select {
			case <-done:
				return nil
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// dispatch routes one inbound message. PING is answered here with a fixed
// ACK payload and never reaches the engine; orders and cancels are tagged
// with this connection's sink and enqueued on the shared command channel,
// which blocks (backpressure) when the engine is saturated.
func (s *Server) dispatch(msg wire.Message, sink *engine.Sink, done <-chan struct{}) error {
	switch m := msg.(type) {
	case wire.Ping:
		sink.TrySend(wire.Ack{Text: pongText})
		return nil
	case wire.NewOrder:
		return s.forward(engine.Command{Kind: engine.CmdNewOrder, Order: m, Sink: sink}, done)
	case wire.Cancel:
		return s.forward(engine.Command{
			Kind:     engine.CmdCancel,
			ClientID: m.ClientID,
			ClOrdID:  m.ClOrdID,
			Sink:     sink,
		}, done)
	}
	// Event frames arriving inbound are as malformed as an unknown type.
	return wire.ErrUnknownType
}

func (s *Server) forward(cmd engine.Command, done <-chan struct{}) error {
	select {
	case s.eng.Commands() <- cmd:
		return nil
	case <-done:
		return nil
	}
}

// writeLoop drains the private sink and the public subscription onto the
// socket. Sequence gaps on the public stream are logged: they mean this
// consumer was too slow and market data was dropped for it.
func (s *Server) writeLoop(conn net.Conn, sink *engine.Sink, sub *subscription, done <-chan struct{}, log *zap.Logger) {
	var scratch []byte
	var lastSeq uint64

	write := func(msg wire.Message) bool {
		scratch = wire.Append(scratch[:0], msg)
		if _, err := conn.Write(scratch); err != nil {
			log.Debug("write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case msg := <-sink.Events():
			if !write(msg) {
				return
			}
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if lastSeq != 0 && ev.Seq != lastSeq+1 {
				log.Warn("market data gap",
					zap.Uint64("expected", lastSeq+1),
					zap.Uint64("got", ev.Seq),
				)
			}
			lastSeq = ev.Seq
			if !write(ev.Msg) {
				return
			}
		}
	}
}
