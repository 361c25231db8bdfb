package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/config"
	"github.com/mcdev12/countrydraft/go/internal/draft/stream"
	"github.com/mcdev12/countrydraft/go/internal/logging"
	"github.com/mcdev12/countrydraft/go/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel)

	items, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load item catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.Store == config.StorePostgres {
		pool, err = setupDatabase(ctx, cfg.AutoMigrate)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up database")
		}
		defer pool.Close()
	}

	services := setupServices(cfg, pool, items)
	defer services.Broker.Close()

	log.Info().
		Str("store", cfg.Store).
		Int("catalog_items", items.Len()).
		Int("per_turn_seconds", cfg.PerTurnSeconds).
		Str("expiry_policy", string(cfg.ExpiryPolicy)).
		Msg("starting draft service")

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("component", name).Msg("component stopped")
			}
		}()
	}

	// Roster events are optional; the service still answers RPCs without a bus.
	connCfg := stream.DefaultConnConfig()
	connCfg.URL = cfg.NATSURL
	connCfg.Name = "draft-service"
	if nc, _, err := stream.Connect(connCfg); err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, roster events will not be applied")
	} else {
		defer nc.Close()
		run("roster-subscriber", roster.NewSubscriber(nc, cfg.RosterSubject, services.OnMembership).Run)
	}

	if services.Orchestrator != nil {
		run("orchestrator", services.Orchestrator.Run)
	}
	if services.Gateway != nil {
		run("gateway", services.Gateway.Start)
	}

	server := setupServer(cfg, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	wg.Wait()

	log.Info().Msg("draft service shutdown complete")
}
