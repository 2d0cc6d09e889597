package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sksmjain/clob-tcp-engine/engine"
	"github.com/sksmjain/clob-tcp-engine/server"
)

const defaultListenAddr = ":9000"

func main() {
	// Optional: a .env file overrides nothing already in the environment.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	listenAddr := getEnv("LISTEN_ADDR", defaultListenAddr)
	cmdBuffer := int(parseIntEnv(log, "CMD_BUFFER", 8192))
	eventBuffer := int(parseIntEnv(log, "EVENT_BUFFER", 1024))
	bcastBuffer := int(parseIntEnv(log, "BCAST_BUFFER", 1024))

	eng := engine.New(engine.Config{CommandBuffer: cmdBuffer})
	eng.Start()

	srv := server.New(server.Config{
		ListenAddr:      listenAddr,
		PrivateBuffer:   eventBuffer,
		BroadcastBuffer: bcastBuffer,
	}, eng, log)

	if err := srv.Listen(); err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}
	log.Info("listening", zap.String("addr", srv.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("serve failed", zap.Error(err))
		}
	}

	// Connections first, then the engine: no producer may outlive it.
	srv.Close()
	eng.Stop()
	log.Info("stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(log *zap.Logger, key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warn("invalid env value, using default",
			zap.String("key", key),
			zap.String("value", value),
			zap.Int64("default", defaultValue),
		)
		return defaultValue
	}
	return parsed
}
