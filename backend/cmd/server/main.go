package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/BioHazard786/peercall/backend/internal/presence"
	"github.com/BioHazard786/peercall/backend/internal/server"
	"github.com/BioHazard786/peercall/backend/internal/signaling"
)

const defaultAddr = ":8080"

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	level, err := zerolog.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		l.Fatal().Err(err).Msg("invalid LOG_LEVEL")
	}
	l = l.Level(level)

	var store presence.Store = presence.NewMemoryStore()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			l.Fatal().Err(err).Str("addr", addr).Msg("Failed to reach redis")
		}
		defer rdb.Close()
		store = presence.NewRedisStore(rdb, os.Getenv("REDIS_PREFIX"))
		l.Info().Str("addr", addr).Msg("Presence mirrored to redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := signaling.NewHub(store, l)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	addr := getenv("ADDR", defaultAddr)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.NewRouter(hub, store, l),
	}

	go func() {
		l.Info().Str("addr", addr).Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopHub()
	<-hubDone
	l.Info().Msg("Server exited")
}
