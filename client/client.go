// Package client is a reference client for the gateway's wire protocol. It
// is consumed by the load generator, the websocket bridge, the bots, and the
// integration tests; the core never depends on it.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sksmjain/clob-tcp-engine/wire"
)

// Client wraps one TCP connection to a gateway. Sends are safe for
// concurrent use; ReadEvent must be called from a single goroutine.
type Client struct {
	conn net.Conn

	wmu     sync.Mutex
	scratch []byte

	buf   []byte
	chunk []byte
}

// Dial connects to a gateway address.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return &Client{
		conn:  conn,
		buf:   make([]byte, 0, 4096),
		chunk: make([]byte, 4096),
	}, nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping sends a PING frame; the gateway answers with ACK("pong").
func (c *Client) Ping() error {
	return c.send(wire.Ping{})
}

// NewOrder submits an order.
func (c *Client) NewOrder(o wire.NewOrder) error {
	return c.send(o)
}

// Cancel requests removal of a resting order.
func (c *Client) Cancel(clientID, clOrdID uint64) error {
	return c.send(wire.Cancel{ClientID: clientID, ClOrdID: clOrdID})
}

func (c *Client) send(msg wire.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.scratch = wire.Append(c.scratch[:0], msg)
	if _, err := c.conn.Write(c.scratch); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadEvent blocks until the next complete frame arrives and returns the
// decoded message. It retains partial frames between calls.
func (c *Client) ReadEvent() (wire.Message, error) {
	for {
		msg, consumed, err := wire.Decode(c.buf)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			rest := copy(c.buf, c.buf[consumed:])
			c.buf = c.buf[:rest]
			return msg, nil
		}

		n, err := c.conn.Read(c.chunk)
		if n > 0 {
			c.buf = append(c.buf, c.chunk[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// SetReadDeadline bounds the next ReadEvent call.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}
