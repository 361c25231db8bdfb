package draft

import "errors"

// Turn computation results.
var (
	// ErrEmptyDraft is returned when a session has no participants. It needs
	// a commissioner repair (re-run the initializer).
	ErrEmptyDraft = errors.New("draft has no participants")
	// ErrDraftComplete is the terminal state, every sequential pick is made.
	ErrDraftComplete = errors.New("draft is complete")
	// ErrInvalidState is returned for a corrupted order or index. The engine
	// never guesses a repair.
	ErrInvalidState = errors.New("draft state is invalid")
)

// Pick application results.
var (
	ErrConflict           = errors.New("item already taken")
	ErrWrongTurn          = errors.New("participant is not on the clock")
	ErrCapacityExceeded   = errors.New("participant already holds the maximum number of items")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrEmptyRoster        = errors.New("roster has no members")
	ErrSessionNotFound    = errors.New("draft session not found")
	ErrUnknownItem        = errors.New("unknown item code")
	ErrUnknownParticipant = errors.New("participant is not in this draft")
	ErrDraftNotStarted    = errors.New("draft has not started")
	ErrInvalidRequest     = errors.New("invalid request")
)

// IsStructural reports whether err needs the privileged role to repair the
// session, as opposed to ordinary contention.
func IsStructural(err error) bool {
	return errors.Is(err, ErrEmptyDraft) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrEmptyRoster)
}

// IsContention reports whether err means another writer got there first.
func IsContention(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrWrongTurn)
}
