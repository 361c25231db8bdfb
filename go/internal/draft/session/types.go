package session

import (
	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// ApplyPickRequest represents a non-privileged pick submission
type ApplyPickRequest struct {
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	ItemCode      string
	// ExpectedPickIndex, when set, rejects the pick with ErrConflict if the
	// session has already moved past that index.
	ExpectedPickIndex *int
	Source            models.PickSource
}

// UpdateSettingsRequest represents a change to the pick timer settings
type UpdateSettingsRequest struct {
	SessionID      uuid.UUID
	PerTurnSeconds *int
	ExpiryPolicy   *models.ExpiryPolicy
}

// Snapshot is a session together with its derived turn state.
type Snapshot struct {
	Session      *models.DraftSession
	CurrentActor uuid.UUID
	Holdings     map[uuid.UUID][]string
	// TurnErr is nil while the draft is running. It carries
	// draft.ErrDraftComplete, draft.ErrEmptyDraft or draft.ErrInvalidState
	// otherwise.
	TurnErr error
}
