package draft

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// Slot is where a pick index lands in a snake draft.
type Slot struct {
	Round    int // 1-based
	Position int // 1-based position within the round
	Overall  int // 1-based overall pick number
}

// SlotFor returns the round and position for pickIndex with n participants.
// Odd rounds (0-indexed) run in reverse.
func SlotFor(pickIndex, n int) Slot {
	round := pickIndex / n
	pos := pickIndex % n
	if round%2 == 1 {
		pos = n - 1 - pos
	}
	return Slot{Round: round + 1, Position: pos + 1, Overall: pickIndex + 1}
}

// CurrentActor returns the participant on the clock.
func CurrentActor(order []uuid.UUID, pickIndex, maxItems int) (uuid.UUID, error) {
	n := len(order)
	if n == 0 {
		return uuid.Nil, ErrEmptyDraft
	}
	if pickIndex < 0 {
		return uuid.Nil, fmt.Errorf("%w: negative pick index %d", ErrInvalidState, pickIndex)
	}
	if pickIndex >= n*maxItems {
		return uuid.Nil, ErrDraftComplete
	}

	pos := SlotFor(pickIndex, n).Position - 1
	if pos < 0 || pos >= n {
		return uuid.Nil, fmt.Errorf("%w: position %d out of range for %d participants", ErrInvalidState, pos, n)
	}
	actor := order[pos]
	if actor == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: empty slot in draft order at %d", ErrInvalidState, pos)
	}
	return actor, nil
}

// Turn returns the participant on the clock for s. It returns ErrInvalidState
// when the order no longer matches the participants, or when the participant
// on the clock already holds MaxItems. The second case follows manual
// inserts: they use up a slot without moving the pick index, so no pick can
// resolve that turn.
func Turn(s *models.DraftSession) (uuid.UUID, error) {
	actor, err := slotActor(s)
	if err != nil {
		return uuid.Nil, err
	}
	if held := CountHeld(s, actor); held >= s.MaxItems {
		return uuid.Nil, fmt.Errorf("%w: %s is on the clock at pick %d but already holds %d items",
			ErrInvalidState, actor, s.PickIndex, held)
	}
	return actor, nil
}

// slotActor returns whoever owns the current slot in the snake order,
// regardless of what they hold.
func slotActor(s *models.DraftSession) (uuid.UUID, error) {
	if len(s.Participants) == 0 {
		return uuid.Nil, ErrEmptyDraft
	}
	if len(s.DraftOrder) != len(s.Participants) {
		return uuid.Nil, fmt.Errorf("%w: draft order has %d entries for %d participants",
			ErrInvalidState, len(s.DraftOrder), len(s.Participants))
	}
	return CurrentActor(s.DraftOrder, s.PickIndex, s.MaxItems)
}
