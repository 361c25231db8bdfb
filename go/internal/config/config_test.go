package config

import (
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcdev12/countrydraft/go/internal/models"
)

func TestDefaultsAreValid(t *testing.T) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ExpiryPolicy != models.ExpiryPolicyRandom || cfg.Store != StorePostgres {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative seconds", func(c *Config) { c.PerTurnSeconds = -1 }, "DRAFT_PER_TURN_SECONDS"},
		{"unknown policy", func(c *Config) { c.ExpiryPolicy = "FASTEST" }, "DRAFT_EXPIRY_POLICY"},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "DRAFT_STORE"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "ORCHESTRATOR_WORKERS"},
		{"no fallback sweep", func(c *Config) { c.FallbackInterval = 0 }, "FALLBACK_INTERVAL"},
		{"manual and zero seconds", func(c *Config) {
			c.ExpiryPolicy = models.ExpiryPolicyManual
			c.PerTurnSeconds = 0
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				PerTurnSeconds:   60,
				ExpiryPolicy:     models.ExpiryPolicyRandom,
				Store:            StoreMemory,
				Workers:          1,
				FallbackInterval: time.Second,
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
