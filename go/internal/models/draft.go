package models

import (
	"github.com/google/uuid"
	"time"
)

// DefaultMaxItems is the per-participant item cap for country drafts.
const DefaultMaxItems = 4

// CurrentSchemaVersion is the layout version written by this service.
const CurrentSchemaVersion = 1

// SessionStatus defines the lifecycle state of a draft session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusLive      SessionStatus = "LIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// ExpiryPolicy defines what happens when a pick timer runs out.
type ExpiryPolicy string

const (
	ExpiryPolicyRandom ExpiryPolicy = "RANDOM"
	ExpiryPolicyBest   ExpiryPolicy = "BEST"
	ExpiryPolicyManual ExpiryPolicy = "MANUAL"
)

// Valid reports whether p is a known policy.
func (p ExpiryPolicy) Valid() bool {
	switch p {
	case ExpiryPolicyRandom, ExpiryPolicyBest, ExpiryPolicyManual:
		return true
	}
	return false
}

// DraftSession is the authoritative record of one division's draft.
// The session ID is the division ID.
type DraftSession struct {
	ID             uuid.UUID     `json:"id"`
	LeagueID       uuid.UUID     `json:"league_id"`
	Participants   []uuid.UUID   `json:"participants"`
	DraftOrder     []uuid.UUID   `json:"draft_order"`
	Simulated      []uuid.UUID   `json:"simulated,omitempty"`
	PickIndex      int           `json:"pick_index"`
	RecentPicks    []PickRecord  `json:"recent_picks"`
	ManualPicks    []PickRecord  `json:"manual_picks,omitempty"`
	Status         SessionStatus `json:"status"`
	PerTurnSeconds int           `json:"per_turn_seconds"`
	ExpiryPolicy   ExpiryPolicy  `json:"expiry_policy"`
	MaxItems       int           `json:"max_items"`
	Version        int64         `json:"version"`
	SchemaVersion  int           `json:"schema_version"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// TotalPicks is the number of sequential picks in a full draft.
func (s *DraftSession) TotalPicks() int {
	return len(s.Participants) * s.MaxItems
}
