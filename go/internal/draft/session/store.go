package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// ErrUnchanged is returned by a MutateFunc or UpsertFunc that has nothing to
// write. The store then commits nothing and returns the current state.
var ErrUnchanged = errors.New("session unchanged")

// MutateFunc mutates s in place and returns the events describing the change.
// s is a private copy; it is discarded when the func returns an error.
type MutateFunc func(s *models.DraftSession) ([]events.Event, error)

// UpsertFunc receives the stored session, or nil when none exists yet, and
// returns the session to persist.
type UpsertFunc func(existing *models.DraftSession) (*models.DraftSession, []events.Event, error)

// Store is the authoritative session record. Update and Upsert are
// read-verify-write transactions scoped to one session: concurrent calls for
// the same id are serialized, calls for different ids are independent.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	Update(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.DraftSession, error)
	Upsert(ctx context.Context, id uuid.UUID, fn UpsertFunc) (*models.DraftSession, error)
	ListLive(ctx context.Context) ([]*models.DraftSession, error)
}
