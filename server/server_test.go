package server_test

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sksmjain/clob-tcp-engine/client"
	"github.com/sksmjain/clob-tcp-engine/engine"
	"github.com/sksmjain/clob-tcp-engine/server"
	"github.com/sksmjain/clob-tcp-engine/wire"
)

func startGateway(t *testing.T) string {
	t.Helper()
	eng := engine.New(engine.Config{})
	eng.Start()

	srv := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, eng, zap.NewNop())
	require.NoError(t, srv.Listen())
	go srv.Serve()

	t.Cleanup(func() {
		srv.Close()
		eng.Stop()
	})
	return srv.Addr().String()
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	cl, err := client.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { cl.Close() })
	return cl
}

// readEvents collects exactly n frames. Private and public events share the
// socket without a relative ordering guarantee, so callers compare sets.
func readEvents(t *testing.T, cl *client.Client, n int) []wire.Message {
	t.Helper()
	require.NoError(t, cl.SetReadDeadline(time.Now().Add(3*time.Second)))
	msgs := make([]wire.Message, 0, n)
	for len(msgs) < n {
		msg, err := cl.ReadEvent()
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestPingAnsweredByGateway(t *testing.T) {
	addr := startGateway(t)
	cl := dial(t, addr)

	require.NoError(t, cl.Ping())
	msgs := readEvents(t, cl, 1)
	assert.Equal(t, wire.Ack{Text: "pong"}, msgs[0])
}

func TestOrderLifecycleAcrossConnections(t *testing.T) {
	addr := startGateway(t)

	maker := dial(t, addr)
	require.NoError(t, maker.NewOrder(wire.NewOrder{
		ClientID: 2, ClOrdID: 2001, Side: wire.SideSell, Price: 101000, Qty: 5000, Tif: wire.TifGTC,
	}))
	assert.ElementsMatch(t, []wire.Message{
		wire.Ack{ClOrdID: 2001},
		wire.BookDelta{Side: wire.SideSell, Price: 101000, LevelQty: 5000},
	}, readEvents(t, maker, 2))

	// The taker connects only now, so it observes nothing of the above.
	taker := dial(t, addr)
	require.NoError(t, taker.NewOrder(wire.NewOrder{
		ClientID: 3, ClOrdID: 3001, Side: wire.SideBuy, Price: 101000, Qty: 2000, Tif: wire.TifIOC,
	}))

	trade := wire.Trade{Price: 101000, Qty: 2000, TakerClientID: 3, MakerClientID: 2}
	delta := wire.BookDelta{Side: wire.SideSell, Price: 101000, LevelQty: 3000}

	// Taker: private fill + ack, plus the public copies of trade and delta.
	assert.ElementsMatch(t, []wire.Message{
		trade, wire.Ack{ClOrdID: 3001}, trade, delta,
	}, readEvents(t, taker, 4))

	// Maker: market data only, in the engine's emit order.
	assert.Equal(t, []wire.Message{trade, delta}, readEvents(t, maker, 2))
}

func TestCancelRoundTrip(t *testing.T) {
	addr := startGateway(t)
	cl := dial(t, addr)

	require.NoError(t, cl.NewOrder(wire.NewOrder{
		ClientID: 5, ClOrdID: 501, Side: wire.SideBuy, Price: 100, Qty: 7, Tif: wire.TifGTC,
	}))
	readEvents(t, cl, 2) // ack + book delta

	require.NoError(t, cl.Cancel(5, 501))
	assert.ElementsMatch(t, []wire.Message{
		wire.Ack{ClOrdID: 501},
		wire.BookDelta{Side: wire.SideBuy, Price: 100, LevelQty: 0},
	}, readEvents(t, cl, 2))

	// A second cancel misses: private reject, no market data.
	require.NoError(t, cl.Cancel(5, 501))
	assert.Equal(t, []wire.Message{
		wire.Reject{ClOrdID: 501, Reason: engine.ReasonNotFound},
	}, readEvents(t, cl, 1))
}

func TestValidationRejectOverWire(t *testing.T) {
	addr := startGateway(t)
	cl := dial(t, addr)

	require.NoError(t, cl.NewOrder(wire.NewOrder{
		ClientID: 1, ClOrdID: 9, Side: wire.SideBuy, Price: -5, Qty: 1, Tif: wire.TifGTC,
	}))
	msgs := readEvents(t, cl, 1)
	reject, ok := msgs[0].(wire.Reject)
	require.True(t, ok, "got %T", msgs[0])
	assert.Equal(t, uint64(9), reject.ClOrdID)
}

func TestOversizedFrameDropsConnection(t *testing.T) {
	addr := startGateway(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], wire.MaxFrameBytes+1)
	_, err = conn.Write(header[:])
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err, "gateway must close the connection on a framing violation")
}

func TestUnknownTypeDropsConnection(t *testing.T) {
	addr := startGateway(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// Well-formed frame with a type the protocol does not define.
	frame := make([]byte, 0, 8)
	frame = binary.LittleEndian.AppendUint32(frame, 4)
	frame = binary.LittleEndian.AppendUint16(frame, 777)
	frame = binary.LittleEndian.AppendUint16(frame, 0)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func TestFrameSplitAcrossWrites(t *testing.T) {
	addr := startGateway(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	frame := wire.Encode(wire.Ping{})
	for _, b := range frame {
		_, err := conn.Write([]byte{b})
		require.NoError(t, err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var acc []byte
	chunk := make([]byte, 64)
	for {
		n, err := conn.Read(chunk)
		require.NoError(t, err)
		acc = append(acc, chunk[:n]...)
		msg, _, err := wire.Decode(acc)
		require.NoError(t, err)
		if msg != nil {
			assert.Equal(t, wire.Ack{Text: "pong"}, msg)
			return
		}
	}
}
