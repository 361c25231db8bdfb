package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/config"
	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
	"github.com/mcdev12/countrydraft/go/internal/draft/gateway"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("draft_service_url", cfg.DraftServiceURL).
		Str("nats_url", cfg.NATSURL).
		Str("port", cfg.GatewayPort).
		Msg("starting draft gateway")

	connCfg := stream.DefaultConnConfig()
	connCfg.URL = cfg.NATSURL
	connCfg.Name = "draft-gateway"
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

	// Every gateway instance needs every event, so each gets its own
	// ephemeral consumer.
	feed := stream.NewFeed(client, broker)
	consumer, err := stream.NewConsumer(ctx, js, stream.DefaultConsumerConfig(""), feed.Handle)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}

	gatewayService := gateway.NewService(
		gateway.DefaultConnectionConfig(),
		gateway.BrokerSource{Broker: broker, Load: client.GetState},
		consumer,
		clockwork.NewRealClock(),
	)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service":     "draft-gateway",
			"connections": gatewayService.Stats().TotalConnections,
		})
	})

	server := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.GatewayPort),
		Handler: cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		}).Handler(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
			stop()
		}
	}()

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
	<-serviceDone

	log.Info().Msg("draft gateway shutdown complete")
}
