package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
)

// MessageType identifies a message pushed to clients.
type MessageType string

const (
	// MessageSnapshot carries the full committed state of the draft.
	MessageSnapshot MessageType = "snapshot"
	// MessageTurnExpired tells the client its local pick clock ran out. It is
	// advisory: the orchestrator decides what happens to the turn.
	MessageTurnExpired MessageType = "turn_expired"
)

// Message is what the gateway writes to a websocket.
type Message struct {
	Type      MessageType          `json:"type"`
	DraftID   uuid.UUID            `json:"draft_id"`
	Timestamp time.Time            `json:"timestamp"`
	State     *draftrpc.DraftState `json:"state,omitempty"`
	Deadline  *time.Time           `json:"deadline,omitempty"`
	PickIndex *int                 `json:"pick_index,omitempty"`
}
