// Package events defines the domain events emitted by draft mutations and
// the envelope they travel in through the outbox and JetStream.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeDraftStarted       = "DraftStarted"
	TypePickMade           = "PickMade"
	TypePickForced         = "PickForced"
	TypeManualPickInserted = "ManualPickInserted"
	TypePickUndone         = "PickUndone"
	TypeDraftInitialized   = "DraftInitialized"
	TypeDraftCompleted     = "DraftCompleted"
	TypeSettingsUpdated    = "SettingsUpdated"
)

// Event is produced by a mutation and written to the outbox in the same
// transaction as the state change.
type Event struct {
	Type    string
	Payload json.RawMessage
}

// New marshals payload into an Event.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: data}, nil
}

// Envelope is a persisted or published event.
type Envelope struct {
	ID        uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	DraftID   uuid.UUID       `json:"draftId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
