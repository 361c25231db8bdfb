package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/db"
	"github.com/mcdev12/countrydraft/go/internal/dbconfig"
)

func setupDatabase(ctx context.Context, autoMigrate bool) (*pgxpool.Pool, error) {
	dbCfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	if autoMigrate {
		if err := db.Migrate(dbCfg.DSN(), "up"); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	pool, err := db.Connect(ctx, dbCfg.DSN())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user", dbCfg.User).
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return pool, nil
}
