// Command broadcastd is the realtime broadcast server: it bridges the event
// bus into per-app rooms and fans events out to authorized subscribers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/supportstack/tickets/internal/api"
	"github.com/supportstack/tickets/internal/auth"
	"github.com/supportstack/tickets/internal/bus"
	"github.com/supportstack/tickets/internal/config"
	"github.com/supportstack/tickets/internal/realtime/server"
	"github.com/supportstack/tickets/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Service: "broadcastd",
		Pretty:  cfg.Env == "development",
	})

	// Verification only; broadcastd never signs tokens.
	verifier, err := auth.LoadKeyPair(cfg.JWT.PublicKeyPath, "")
	if err != nil {
		log.Fatal().Err(err).Msg("loading key material")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := bus.Connect(ctx, bus.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	defer func() { _ = rdb.Close() }()

	adapter := bus.NewRedisAdapter(rdb, log)
	queue, bridgeDone, err := adapter.Subscribe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("starting adapter bridge")
	}

	realtime := server.New(verifier, log)
	go realtime.Broadcast(queue)

	e := api.NewRouter(log, rdb, realtime)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("broadcastd listening")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-bridgeDone:
		// A dead bridge means no more events; crash loudly rather than
		// serve a silently stale stream.
		log.Error().Err(err).Msg("adapter bridge terminated")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
