package models

import (
	"github.com/google/uuid"
	"time"
)

// Division is one draft pool inside a league.
type Division struct {
	ID               uuid.UUID  `json:"id"`
	LeagueID         uuid.UUID  `json:"league_id"`
	Name             string     `json:"name"`
	LegacyMigratedAt *time.Time `json:"legacy_migrated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// LegacyDraft is the draft copy older clients embedded in the division
// record. It is read once to seed a normalized session and never written.
type LegacyDraft struct {
	DivisionID  uuid.UUID         `json:"-"`
	LeagueID    uuid.UUID         `json:"-"`
	Order       []string          `json:"order"`
	Members     []string          `json:"members"`
	CurrentPick int               `json:"currentPick"`
	Picks       []LegacyDraftPick `json:"picks"`
	Status      string            `json:"status"`
	TimerSecs   int               `json:"timer"`
	AutoPick    string            `json:"autoPick"`
}

// LegacyDraftPick is a pick in the legacy embedded shape.
type LegacyDraftPick struct {
	UID     string `json:"uid"`
	Country string `json:"country"`
	At      int64  `json:"at"`
}
