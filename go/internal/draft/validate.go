package draft

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// Validate checks the session invariants. It returns ErrEmptyDraft for a
// session without participants and ErrInvalidState for anything else.
func Validate(s *models.DraftSession) error {
	n := len(s.Participants)
	if n == 0 {
		return ErrEmptyDraft
	}
	if s.MaxItems < 1 {
		return fmt.Errorf("%w: max items %d", ErrInvalidState, s.MaxItems)
	}
	if s.PickIndex < 0 || s.PickIndex > s.TotalPicks() {
		return fmt.Errorf("%w: pick index %d outside [0, %d]", ErrInvalidState, s.PickIndex, s.TotalPicks())
	}
	if err := validatePermutation(s.Participants, s.DraftOrder); err != nil {
		return err
	}
	if len(s.RecentPicks) != s.PickIndex {
		return fmt.Errorf("%w: %d picks logged at index %d", ErrInvalidState, len(s.RecentPicks), s.PickIndex)
	}

	owner := make(map[string]uuid.UUID, len(s.RecentPicks)+len(s.ManualPicks))
	count := make(map[uuid.UUID]int, n)
	for _, picks := range [][]models.PickRecord{s.RecentPicks, s.ManualPicks} {
		for _, p := range picks {
			if prev, ok := owner[p.ItemCode]; ok {
				return fmt.Errorf("%w: %s held by %s and %s", ErrInvalidState, p.ItemCode, prev, p.ParticipantID)
			}
			owner[p.ItemCode] = p.ParticipantID
			count[p.ParticipantID]++
		}
	}
	for id, c := range count {
		if c > s.MaxItems {
			return fmt.Errorf("%w: %s holds %d items", ErrInvalidState, id, c)
		}
	}

	complete := s.PickIndex == s.TotalPicks()
	if complete != (s.Status == models.SessionStatusCompleted) {
		return fmt.Errorf("%w: status %s at pick %d of %d", ErrInvalidState, s.Status, s.PickIndex, s.TotalPicks())
	}
	return nil
}

func validatePermutation(participants, order []uuid.UUID) error {
	if len(order) != len(participants) {
		return fmt.Errorf("%w: draft order has %d entries for %d participants", ErrInvalidState, len(order), len(participants))
	}
	seen := make(map[uuid.UUID]bool, len(participants))
	for _, id := range participants {
		if seen[id] {
			return fmt.Errorf("%w: duplicate participant %s", ErrInvalidState, id)
		}
		seen[id] = true
	}
	for _, id := range order {
		if !seen[id] {
			return fmt.Errorf("%w: draft order entry %s is not a participant or repeats", ErrInvalidState, id)
		}
		delete(seen, id)
	}
	return nil
}
