// wsbridge is a protocol translator: it terminates websocket clients,
// converts their JSON messages into wire frames for a gateway, and streams
// the gateway's events back as JSON. It holds no book state of its own.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sksmjain/clob-tcp-engine/client"
	"github.com/sksmjain/clob-tcp-engine/wire"
)

type bridge struct {
	gatewayAddr string
	upgrader    websocket.Upgrader
	log         *zap.SugaredLogger
}

type inboundMessage struct {
	Type     string `json:"type"`
	ClientID uint64 `json:"clientId"`
	ClOrdID  uint64 `json:"clOrdId"`
	Side     string `json:"side"`
	Price    int64  `json:"price"`
	Qty      int64  `json:"qty"`
	Tif      string `json:"tif"`
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	listenAddr := getEnv("BRIDGE_ADDR", ":8080")
	gatewayAddr := getEnv("GATEWAY_ADDR", "127.0.0.1:9000")

	b := &bridge{
		gatewayAddr: gatewayAddr,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:         log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)

	log.Infow("bridge listening", "addr", listenAddr, "gateway", gatewayAddr)
	if err := http.ListenAndServe(listenAddr, mux); err != nil {
		log.Fatal(err)
	}
}

// handleWS pairs one websocket with one gateway connection for its lifetime.
func (b *bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	cl, err := client.Dial(b.gatewayAddr)
	if err != nil {
		b.log.Warnw("gateway dial failed", "err", err)
		_ = ws.WriteJSON(outboundMessage{Type: "error", Data: "gateway unavailable"})
		return
	}
	defer cl.Close()

	// The websocket allows only one concurrent writer, so both the event
	// pump and the error path feed one outbound channel drained here.
	out := make(chan outboundMessage, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer ws.Close()
		for msg := range out {
			if err := ws.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	// Gateway → websocket.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			msg, err := cl.ReadEvent()
			if err != nil {
				return
			}
			select {
			case out <- toOutbound(msg):
			case <-writerDone:
				return
			}
		}
	}()

	// Websocket → gateway.
	for {
		var in inboundMessage
		if err := ws.ReadJSON(&in); err != nil {
			break
		}
		if err := b.forward(cl, in); err != nil {
			select {
			case out <- outboundMessage{Type: "error", Data: err.Error()}:
			case <-writerDone:
			}
			break
		}
	}

	// Closing the gateway connection unblocks the pump; only then is it
	// safe to close the outbound channel the pump sends on.
	cl.Close()
	wg.Wait()
	close(out)
	<-writerDone
}

func (b *bridge) forward(cl *client.Client, in inboundMessage) error {
	switch strings.ToLower(in.Type) {
	case "ping":
		return cl.Ping()
	case "new_order":
		side, err := parseSide(in.Side)
		if err != nil {
			return err
		}
		tif, err := parseTif(in.Tif)
		if err != nil {
			return err
		}
		return cl.NewOrder(wire.NewOrder{
			ClientID: in.ClientID,
			ClOrdID:  in.ClOrdID,
			Side:     side,
			Price:    in.Price,
			Qty:      in.Qty,
			Tif:      tif,
		})
	case "cancel":
		return cl.Cancel(in.ClientID, in.ClOrdID)
	default:
		return fmt.Errorf("unknown message type %q", in.Type)
	}
}

func toOutbound(msg wire.Message) outboundMessage {
	switch m := msg.(type) {
	case wire.Ack:
		return outboundMessage{Type: "ack", Data: map[string]interface{}{
			"clOrdId": m.ClOrdID, "text": m.Text,
		}}
	case wire.Reject:
		return outboundMessage{Type: "reject", Data: map[string]interface{}{
			"clOrdId": m.ClOrdID, "reason": m.Reason,
		}}
	case wire.Trade:
		return outboundMessage{Type: "trade", Data: map[string]interface{}{
			"price": m.Price, "qty": m.Qty,
			"takerClientId": m.TakerClientID, "makerClientId": m.MakerClientID,
		}}
	case wire.BookDelta:
		return outboundMessage{Type: "bookDelta", Data: map[string]interface{}{
			"side": sideString(m.Side), "price": m.Price, "levelQty": m.LevelQty,
		}}
	}
	return outboundMessage{Type: "unknown"}
}

func parseSide(value string) (uint8, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return wire.SideBuy, nil
	case "sell", "ask", "s":
		return wire.SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", value)
	}
}

func parseTif(value string) (uint8, error) {
	switch strings.ToLower(value) {
	case "", "gtc":
		return wire.TifGTC, nil
	case "ioc":
		return wire.TifIOC, nil
	default:
		return 0, fmt.Errorf("unknown time in force %q", value)
	}
}

func sideString(side uint8) string {
	if side == wire.SideBuy {
		return "buy"
	}
	return "sell"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
