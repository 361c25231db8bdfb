package override

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/draft/initializer"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// Action is a commissioner override kind.
type Action string

const (
	ActionForce  Action = "force"
	ActionManual Action = "manual"
	ActionUndo   Action = "undo"
	ActionReinit Action = "reinit"
)

// OverrideRequest represents one privileged mutation. TargetParticipantID
// and ItemCode are used by force and manual; ResetPicks and ShuffleOrder by
// reinit.
type OverrideRequest struct {
	SessionID           uuid.UUID
	Action              Action
	TargetParticipantID uuid.UUID
	ItemCode            string
	ResetPicks          bool
	ShuffleOrder        bool
}

// SessionMutator defines what overrides need from the session layer
type SessionMutator interface {
	Mutate(ctx context.Context, id uuid.UUID, fn session.MutateFunc) (*models.DraftSession, error)
}

// Initializer rebuilds a session from the current roster.
type Initializer interface {
	InitializeFromRoster(ctx context.Context, sessionID uuid.UUID, opts initializer.Options) (*models.DraftSession, error)
}

// ItemCatalog validates item codes.
type ItemCatalog interface {
	Contains(code string) bool
}
