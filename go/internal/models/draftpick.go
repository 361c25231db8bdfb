package models

import (
	"github.com/google/uuid"
	"time"
)

// ManualPickIndex marks a PickRecord that was inserted out of sequence.
const ManualPickIndex = 0

// PickSource records how a pick entered the log.
type PickSource string

const (
	PickSourceParticipant PickSource = "PICK"
	PickSourceAuto        PickSource = "AUTO"
	PickSourceForced      PickSource = "FORCED"
	PickSourceManual      PickSource = "MANUAL"
)

// PickRecord is one claimed item. Sequential picks carry the pick index they
// were made at; manual inserts carry ManualPickIndex.
type PickRecord struct {
	ParticipantID   uuid.UUID  `json:"participant_id"`
	ItemCode        string     `json:"item_code"`
	PickIndexAtTime int        `json:"pick_index_at_time"`
	Timestamp       time.Time  `json:"timestamp"`
	Source          PickSource `json:"source,omitempty"`
}
