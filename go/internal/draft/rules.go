package draft

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// PickInput describes one pick attempt against a session.
type PickInput struct {
	ParticipantID uuid.UUID
	ItemCode      string
	Source        models.PickSource
	// SkipTurnCheck is set by commissioner overrides only.
	SkipTurnCheck bool
	Now           time.Time
}

// ApplyPick validates in against the current state of s and, on success,
// appends the pick and advances the index. s is left untouched on error.
func ApplyPick(s *models.DraftSession, in PickInput) error {
	n := len(s.Participants)
	if s.Status == models.SessionStatusCompleted || (n > 0 && s.PickIndex >= s.TotalPicks()) {
		return ErrDraftComplete
	}
	if n == 0 {
		return ErrEmptyDraft
	}
	if s.Status == models.SessionStatusScheduled && !in.SkipTurnCheck {
		return ErrDraftNotStarted
	}
	if !slices.Contains(s.Participants, in.ParticipantID) {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, in.ParticipantID)
	}
	if holder, ok := HolderOf(s, in.ItemCode); ok {
		return fmt.Errorf("%w: %s is held by %s", ErrConflict, in.ItemCode, holder)
	}

	// A forced pick may fill a slot whose owner is already full.
	turn := Turn
	if in.SkipTurnCheck {
		turn = slotActor
	}
	actor, err := turn(s)
	if err != nil {
		return err
	}
	if !in.SkipTurnCheck && actor != in.ParticipantID {
		return fmt.Errorf("%w: pick %d belongs to %s", ErrWrongTurn, s.PickIndex, actor)
	}
	if CountHeld(s, in.ParticipantID) >= s.MaxItems {
		return fmt.Errorf("%w: %s holds %d", ErrCapacityExceeded, in.ParticipantID, s.MaxItems)
	}

	source := in.Source
	if source == "" {
		source = models.PickSourceParticipant
	}
	s.RecentPicks = append(s.RecentPicks, models.PickRecord{
		ParticipantID:   in.ParticipantID,
		ItemCode:        in.ItemCode,
		PickIndexAtTime: s.PickIndex,
		Timestamp:       in.Now,
		Source:          source,
	})
	s.PickIndex++

	if s.Status == models.SessionStatusScheduled {
		s.Status = models.SessionStatusLive
		s.StartedAt = &in.Now
	}
	if s.PickIndex == s.TotalPicks() {
		s.Status = models.SessionStatusCompleted
		s.CompletedAt = &in.Now
	}
	return nil
}

// InsertManual records an off-sequence pick for participant. The pick index
// does not move.
func InsertManual(s *models.DraftSession, participant uuid.UUID, itemCode string, now time.Time) error {
	if len(s.Participants) == 0 {
		return ErrEmptyDraft
	}
	if !slices.Contains(s.Participants, participant) {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, participant)
	}
	if holder, ok := HolderOf(s, itemCode); ok {
		return fmt.Errorf("%w: %s is held by %s", ErrConflict, itemCode, holder)
	}
	if CountHeld(s, participant) >= s.MaxItems {
		return fmt.Errorf("%w: %s holds %d", ErrCapacityExceeded, participant, s.MaxItems)
	}

	s.ManualPicks = append(s.ManualPicks, models.PickRecord{
		ParticipantID:   participant,
		ItemCode:        itemCode,
		PickIndexAtTime: models.ManualPickIndex,
		Timestamp:       now,
		Source:          models.PickSourceManual,
	})
	return nil
}

// UndoLast removes the most recent sequential pick and returns it.
func UndoLast(s *models.DraftSession) (models.PickRecord, error) {
	if len(s.RecentPicks) == 0 {
		return models.PickRecord{}, ErrNothingToUndo
	}
	if len(s.RecentPicks) != s.PickIndex {
		return models.PickRecord{}, fmt.Errorf("%w: %d picks logged at index %d", ErrInvalidState, len(s.RecentPicks), s.PickIndex)
	}

	last := s.RecentPicks[len(s.RecentPicks)-1]
	s.RecentPicks = s.RecentPicks[:len(s.RecentPicks)-1]
	s.PickIndex--
	if s.Status == models.SessionStatusCompleted {
		s.Status = models.SessionStatusLive
		s.CompletedAt = nil
	}
	return last, nil
}

// HolderOf returns the participant holding itemCode, if any.
func HolderOf(s *models.DraftSession, itemCode string) (uuid.UUID, bool) {
	for _, p := range s.RecentPicks {
		if p.ItemCode == itemCode {
			return p.ParticipantID, true
		}
	}
	for _, p := range s.ManualPicks {
		if p.ItemCode == itemCode {
			return p.ParticipantID, true
		}
	}
	return uuid.Nil, false
}

// CountHeld returns how many items participant holds.
func CountHeld(s *models.DraftSession, participant uuid.UUID) int {
	count := 0
	for _, p := range s.RecentPicks {
		if p.ParticipantID == participant {
			count++
		}
	}
	for _, p := range s.ManualPicks {
		if p.ParticipantID == participant {
			count++
		}
	}
	return count
}

// Holdings returns each participant's held items in the order they were
// claimed, sequential picks first.
func Holdings(s *models.DraftSession) map[uuid.UUID][]string {
	held := make(map[uuid.UUID][]string, len(s.Participants))
	for _, id := range s.Participants {
		held[id] = []string{}
	}
	for _, p := range s.RecentPicks {
		held[p.ParticipantID] = append(held[p.ParticipantID], p.ItemCode)
	}
	for _, p := range s.ManualPicks {
		held[p.ParticipantID] = append(held[p.ParticipantID], p.ItemCode)
	}
	return held
}

// HeldItems returns the set of claimed item codes.
func HeldItems(s *models.DraftSession) map[string]bool {
	held := make(map[string]bool, len(s.RecentPicks)+len(s.ManualPicks))
	for _, p := range s.RecentPicks {
		held[p.ItemCode] = true
	}
	for _, p := range s.ManualPicks {
		held[p.ItemCode] = true
	}
	return held
}

// IsSimulated reports whether participant is a bot in s.
func IsSimulated(s *models.DraftSession, participant uuid.UUID) bool {
	return slices.Contains(s.Simulated, participant)
}

// Clone returns a deep copy of s.
func Clone(s *models.DraftSession) *models.DraftSession {
	c := *s
	c.Participants = slices.Clone(s.Participants)
	c.DraftOrder = slices.Clone(s.DraftOrder)
	c.Simulated = slices.Clone(s.Simulated)
	c.RecentPicks = slices.Clone(s.RecentPicks)
	c.ManualPicks = slices.Clone(s.ManualPicks)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
