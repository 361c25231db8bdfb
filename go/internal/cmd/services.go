package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/config"
	"github.com/mcdev12/countrydraft/go/internal/draft/gateway"
	"github.com/mcdev12/countrydraft/go/internal/draft/initializer"
	"github.com/mcdev12/countrydraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/countrydraft/go/internal/draft/outbox"
	"github.com/mcdev12/countrydraft/go/internal/draft/override"
	"github.com/mcdev12/countrydraft/go/internal/draft/service"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/leagues"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/mcdev12/countrydraft/go/internal/roster"
)

type Services struct {
	Draft    *service.Service
	Sessions *session.App
	Broker   *session.Broker

	// OnMembership handles roster events from the league service.
	OnMembership roster.MembershipHandler

	// Set only for the memory store, where this process is the only one
	// that sees commits and so hosts the orchestrator and gateway itself.
	Orchestrator *orchestrator.Orchestrator
	Gateway      *gateway.Service
}

// setupServices wires Repository → App → Service. pool is nil for the
// memory store.
func setupServices(cfg *config.Config, pool *pgxpool.Pool, items *catalog.Catalog) *Services {
	clock := clockwork.NewRealClock()
	broker := session.NewBroker()

	var (
		store      session.Store
		rosterRepo roster.RosterRepository
		legacy     initializer.LegacySource
		memRoster  *roster.MemoryRepository
	)
	if pool != nil {
		store = session.NewRepository(pool, outbox.NewRepository(pool))
		rosterRepo = roster.NewRepository(pool)
		legacy = leagues.NewRepository(stdlib.OpenDBFromPool(pool))
	} else {
		store = session.NewMemoryStore()
		memRoster = roster.NewMemoryRepository()
		rosterRepo = memRoster
	}

	sessionApp := session.NewApp(store, items, broker, clock)
	rosterApp := roster.NewApp(rosterRepo)
	initApp := initializer.NewApp(sessionApp, rosterApp, legacy, items, clock, nil, initializer.Defaults{
		PerTurnSeconds: cfg.PerTurnSeconds,
		ExpiryPolicy:   cfg.ExpiryPolicy,
		MaxItems:       models.DefaultMaxItems,
	})
	overrideApp := override.NewApp(sessionApp, initApp, items, clock)

	svc := &Services{
		Draft:        service.NewService(sessionApp, overrideApp, initApp),
		Sessions:     sessionApp,
		Broker:       broker,
		OnMembership: initApp.HandleMembershipEvent,
	}

	if memRoster != nil {
		svc.OnMembership = func(ctx context.Context, ev models.MembershipEvent) error {
			memRoster.Apply(ev)
			return initApp.HandleMembershipEvent(ctx, ev)
		}
		resolver := orchestrator.NewResolver(items, orchestrator.NewRandomStrategy(nil))
		svc.Orchestrator = orchestrator.NewOrchestrator(sessionApp, sessionApp, resolver, clock, cfg.Workers)
		svc.Gateway = gateway.NewService(gateway.DefaultConnectionConfig(), sessionApp, nil, clock)
	}
	return svc
}
