package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/config"
	"github.com/mcdev12/countrydraft/go/internal/db"
	"github.com/mcdev12/countrydraft/go/internal/dbconfig"
	"github.com/mcdev12/countrydraft/go/internal/draft/outbox"
	"github.com/mcdev12/countrydraft/go/internal/draft/stream"
	"github.com/mcdev12/countrydraft/go/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel)

	dbCfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")

	connCfg := stream.DefaultConnConfig()
	connCfg.URL = cfg.NATSURL
	connCfg.Name = "draft-outbox-relay"
	nc, js, err := stream.Connect(connCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	publisher, err := stream.NewPublisher(ctx, js, stream.DefaultStreamConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream publisher")
	}

	repo := outbox.NewRepository(pool)

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dbCfg.DSN()
	ltCfg.FallbackInterval = cfg.FallbackInterval

	listener, err := outbox.NewListener(repo, publisher, outbox.NewLogMetrics(), ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outbox listener")
	}

	health := outbox.NewHealthChecker(listener, repo, repo, nc, 5*time.Minute)
	mux := http.NewServeMux()
	mux.Handle("/health", health)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.RelayPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting outbox relay")
		errCh <- listener.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("outbox relay exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server shutdown failed")
	}
	log.Info().Msg("outbox relay shutdown complete")
}
