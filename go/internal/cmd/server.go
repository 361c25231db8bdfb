package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/countrydraft/go/internal/config"
	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{draftrpc.ErrorHeader, "Grpc-Status", "Grpc-Message"},
	})

	draftPath, draftHandler := draftrpc.NewHandler(services.Draft, connect.WithInterceptors(logInterceptor()))
	mux.Handle(draftPath, draftHandler)

	if services.Gateway != nil {
		// The gateway registers /health too.
		services.Gateway.RegisterRoutes(mux)
	} else {
		setupHealthCheck(mux)
	}

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func logInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			evt := log.Debug()
			if err != nil {
				evt = log.Info().Err(err).Str("code", connect.CodeOf(err).String())
			}
			evt.Str("procedure", req.Spec().Procedure).
				Dur("duration", time.Since(start)).
				Msg("rpc handled")
			return res, err
		}
	}
}
