package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterMember is a participant assigned to a division.
type RosterMember struct {
	DivisionID    uuid.UUID `json:"division_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	IsBot         bool      `json:"is_bot"`
	JoinedAt      time.Time `json:"joined_at"`
}

// MembershipAction is the kind of roster change.
type MembershipAction string

const (
	MembershipJoined MembershipAction = "JOINED"
	MembershipLeft   MembershipAction = "LEFT"
)

// MembershipEvent is published by the league service when a division roster changes.
type MembershipEvent struct {
	DivisionID    uuid.UUID        `json:"division_id"`
	ParticipantID uuid.UUID        `json:"participant_id"`
	Action        MembershipAction `json:"action"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
