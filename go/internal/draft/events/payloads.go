package events

import (
	"time"
)

// Event payload types shared by the engine, the relay and its consumers.

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	DraftID      string    `json:"draft_id"`
	StartedAt    time.Time `json:"started_at"`
	Participants int       `json:"participants"`
	TotalPicks   int       `json:"total_picks"`
}

// PickMadePayload is the payload for PickMade and PickForced events
type PickMadePayload struct {
	DraftID       string    `json:"draft_id"`
	ParticipantID string    `json:"participant_id"`
	ItemCode      string    `json:"item_code"`
	PickIndex     int       `json:"pick_index"`
	Round         int       `json:"round"`
	Pick          int       `json:"pick"`
	Source        string    `json:"source"`
	MadeAt        time.Time `json:"made_at"`
}

// ManualPickInsertedPayload is the payload for a ManualPickInserted event
type ManualPickInsertedPayload struct {
	DraftID       string    `json:"draft_id"`
	ParticipantID string    `json:"participant_id"`
	ItemCode      string    `json:"item_code"`
	InsertedAt    time.Time `json:"inserted_at"`
}

// PickUndonePayload is the payload for a PickUndone event
type PickUndonePayload struct {
	DraftID       string    `json:"draft_id"`
	ParticipantID string    `json:"participant_id"`
	ItemCode      string    `json:"item_code"`
	PickIndex     int       `json:"pick_index"`
	UndoneAt      time.Time `json:"undone_at"`
}

// DraftInitializedPayload is the payload for a DraftInitialized event
type DraftInitializedPayload struct {
	DraftID       string    `json:"draft_id"`
	Participants  []string  `json:"participants"`
	DraftOrder    []string  `json:"draft_order"`
	ResetPicks    bool      `json:"reset_picks"`
	Shuffled      bool      `json:"shuffled"`
	Migrated      bool      `json:"migrated"`
	InitializedAt time.Time `json:"initialized_at"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	DraftID     string    `json:"draft_id"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	TotalPicks  int       `json:"total_picks"`
}

// SettingsUpdatedPayload is the payload for a SettingsUpdated event
type SettingsUpdatedPayload struct {
	DraftID        string    `json:"draft_id"`
	PerTurnSeconds int       `json:"per_turn_seconds"`
	ExpiryPolicy   string    `json:"expiry_policy"`
	UpdatedAt      time.Time `json:"updated_at"`
}
