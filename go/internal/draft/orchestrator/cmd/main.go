package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/config"
	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
	"github.com/mcdev12/countrydraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/draft/stream"
	"github.com/mcdev12/countrydraft/go/internal/logging"
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

	log.Info().
		Str("draft_service_url", cfg.DraftServiceURL).
		Str("nats_url", cfg.NATSURL).
		Int("workers", cfg.Workers).
		Int("catalog_items", items.Len()).
		Msg("starting draft orchestrator")

	connCfg := stream.DefaultConnConfig()
	connCfg.URL = cfg.NATSURL
	connCfg.Name = "draft-orchestrator"
	nc, js, err := stream.Connect(connCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	if err := stream.EnsureStream(ctx, js, stream.DefaultStreamConfig()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure draft event stream")
	}

	client := draftrpc.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.DraftServiceURL)
	broker := session.NewBroker()
	defer broker.Close()

	feed := stream.NewFeed(client, broker)
	consumer, err := stream.NewConsumer(ctx, js, stream.DefaultConsumerConfig(""), feed.Handle)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}

	resolver := orchestrator.NewResolver(items, orchestrator.NewRandomStrategy(nil))
	orch := orchestrator.NewOrchestrator(client, broker, resolver, clockwork.NewRealClock(), cfg.Workers)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := orch.Run(ctx); err != nil {
			log.Error().Err(err).Msg("orchestrator failed")
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !nc.IsConnected() {
			http.Error(w, "NATS disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.OrchestratorPort),
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

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server shutdown failed")
	}
	wg.Wait()

	log.Info().Msg("draft orchestrator shutdown complete")
}
