package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sksmjain/clob-tcp-engine/bots"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "gateway address")
	clientID := flag.Uint64("client-id", 42, "client id for the bot swarm")
	basePrice := flag.Int64("base-price", 10000, "seed price when the book is empty")
	tick := flag.Int64("tick", 1, "price increment")
	interval := flag.Duration("interval", 50*time.Millisecond, "minimum delay between orders")
	duration := flag.Duration("duration", 0, "how long to run (0 = until interrupted)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, cancel := signalContext(*duration)
	defer cancel()

	sup, err := bots.NewSupervisor(*addr, *clientID, *basePrice, *tick, *interval, log)
	if err != nil {
		log.Fatalw("connect failed", "err", err)
	}
	sup.Start(ctx)
}

func signalContext(duration time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
