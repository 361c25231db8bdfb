package initializer

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// Options controls how Initialize rebuilds a session.
type Options struct {
	// ResetPicks clears all pick progress.
	ResetPicks bool
	// ShuffleOrder replaces the draft order with a uniformly random one.
	ShuffleOrder bool
}

// Defaults are applied to sessions created from scratch.
type Defaults struct {
	PerTurnSeconds int
	ExpiryPolicy   models.ExpiryPolicy
	MaxItems       int
}

// SessionStore defines what the initializer needs from the session layer
type SessionStore interface {
	Upsert(ctx context.Context, id uuid.UUID, fn session.UpsertFunc) (*models.DraftSession, error)
}

// RosterSource lists the current members of a division.
type RosterSource interface {
	ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error)
}

// LegacySource reads the draft copy embedded in older division records.
// GetLegacyDraft returns nil when there is nothing left to migrate.
type LegacySource interface {
	GetLegacyDraft(ctx context.Context, divisionID uuid.UUID) (*models.LegacyDraft, error)
	MarkLegacyMigrated(ctx context.Context, divisionID uuid.UUID) error
}

// ItemCatalog validates item codes found in legacy picks.
type ItemCatalog interface {
	Contains(code string) bool
}
