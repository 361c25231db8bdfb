// Package config holds the settings shared by the draft binaries.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/models"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port             string              `env:"PORT" envDefault:"8080"`
	GatewayPort      string              `env:"GATEWAY_PORT" envDefault:"8081"`
	OrchestratorPort string              `env:"ORCHESTRATOR_PORT" envDefault:"8082"`
	RelayPort        string              `env:"RELAY_PORT" envDefault:"8083"`
	NATSURL          string              `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	CatalogPath      string              `env:"CATALOG_PATH"`
	LogLevel         string              `env:"LOG_LEVEL" envDefault:"info"`
	Store            string              `env:"DRAFT_STORE" envDefault:"postgres"`
	AutoMigrate      bool                `env:"AUTO_MIGRATE" envDefault:"true"`
	PerTurnSeconds   int                 `env:"DRAFT_PER_TURN_SECONDS" envDefault:"60"`
	ExpiryPolicy     models.ExpiryPolicy `env:"DRAFT_EXPIRY_POLICY" envDefault:"RANDOM"`
	Workers          int                 `env:"ORCHESTRATOR_WORKERS" envDefault:"4"`
	DraftServiceURL  string              `env:"DRAFT_SERVICE_URL" envDefault:"http://localhost:8080"`
	FallbackInterval time.Duration       `env:"FALLBACK_INTERVAL" envDefault:"30s"`
	ShutdownTimeout  time.Duration       `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins   []string            `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RosterSubject    string              `env:"ROSTER_SUBJECT" envDefault:"roster.events.>"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PerTurnSeconds < 0 {
		errs = append(errs, fmt.Errorf("DRAFT_PER_TURN_SECONDS must not be negative, got %d", c.PerTurnSeconds))
	}
	if !c.ExpiryPolicy.Valid() {
		errs = append(errs, fmt.Errorf("DRAFT_EXPIRY_POLICY %q is not one of RANDOM, BEST, MANUAL", c.ExpiryPolicy))
	}
	if c.Store != StoreMemory && c.Store != StorePostgres {
		errs = append(errs, fmt.Errorf("DRAFT_STORE %q is not one of %s, %s", c.Store, StorePostgres, StoreMemory))
	}
	if c.FallbackInterval <= 0 {
		errs = append(errs, fmt.Errorf("FALLBACK_INTERVAL must be positive, got %s", c.FallbackInterval))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("ORCHESTRATOR_WORKERS must be at least 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}
