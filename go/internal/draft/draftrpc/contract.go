// Package draftrpc is the Connect contract of the draft service: procedure
// names, JSON messages, the handler mount and a typed client.
package draftrpc

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// ServiceName is the fully-qualified name of the draft service.
const ServiceName = "draft.v1.DraftService"

const (
	GetStateProcedure       = "/draft.v1.DraftService/GetState"
	ApplyPickProcedure      = "/draft.v1.DraftService/ApplyPick"
	OverrideProcedure       = "/draft.v1.DraftService/Override"
	InitializeProcedure     = "/draft.v1.DraftService/Initialize"
	StartDraftProcedure     = "/draft.v1.DraftService/StartDraft"
	UpdateSettingsProcedure = "/draft.v1.DraftService/UpdateSettings"
	ListLiveDraftsProcedure = "/draft.v1.DraftService/ListLiveDrafts"
)

type GetStateRequest struct {
	DraftID uuid.UUID `json:"draft_id"`
}

type ApplyPickRequest struct {
	DraftID           uuid.UUID `json:"draft_id"`
	ParticipantID     uuid.UUID `json:"participant_id"`
	ItemCode          string    `json:"item_code"`
	ExpectedPickIndex *int      `json:"expected_pick_index,omitempty"`
	Source            string    `json:"source,omitempty"`
}

type OverrideRequest struct {
	DraftID             uuid.UUID `json:"draft_id"`
	Action              string    `json:"action"`
	TargetParticipantID uuid.UUID `json:"target_participant_id,omitempty"`
	ItemCode            string    `json:"item_code,omitempty"`
	ResetPicks          bool      `json:"reset_picks,omitempty"`
	ShuffleOrder        bool      `json:"shuffle_order,omitempty"`
}

type InitializeRequest struct {
	DraftID      uuid.UUID `json:"draft_id"`
	ResetPicks   bool      `json:"reset_picks,omitempty"`
	ShuffleOrder bool      `json:"shuffle_order,omitempty"`
}

type StartDraftRequest struct {
	DraftID uuid.UUID `json:"draft_id"`
}

type UpdateSettingsRequest struct {
	DraftID        uuid.UUID `json:"draft_id"`
	PerTurnSeconds *int      `json:"per_turn_seconds,omitempty"`
	ExpiryPolicy   *string   `json:"expiry_policy,omitempty"`
}

type ListLiveDraftsRequest struct{}

type ListLiveDraftsResponse struct {
	Drafts []*DraftState `json:"drafts"`
}

// Problem values reported in DraftState.Problem.
const (
	ProblemEmptyDraft   = "empty_draft"
	ProblemInvalidState = "invalid_state"
)

// DraftState is a session with its derived turn state.
type DraftState struct {
	Session      *models.DraftSession   `json:"session"`
	CurrentActor *uuid.UUID             `json:"current_actor,omitempty"`
	Complete     bool                   `json:"complete"`
	Holdings     map[uuid.UUID][]string `json:"holdings"`
	// Problem is set when the session cannot progress until the commissioner
	// repairs it.
	Problem string `json:"problem,omitempty"`
}

// NewDraftState describes s for the wire.
func NewDraftState(s *models.DraftSession) *DraftState {
	snap := session.Describe(s)
	st := &DraftState{
		Session:  s,
		Holdings: snap.Holdings,
	}
	switch {
	case snap.TurnErr == nil:
		actor := snap.CurrentActor
		st.CurrentActor = &actor
	case errors.Is(snap.TurnErr, draft.ErrDraftComplete):
		st.Complete = true
	default:
		st.Problem = ProblemFor(snap.TurnErr)
	}
	return st
}

// ProblemFor maps a structural error to its Problem value.
func ProblemFor(err error) string {
	switch {
	case errors.Is(err, draft.ErrEmptyDraft):
		return ProblemEmptyDraft
	case errors.Is(err, draft.ErrInvalidState):
		return ProblemInvalidState
	}
	return ""
}
