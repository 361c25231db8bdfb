package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// ExpiryFunc is called once when an armed turn runs out.
type ExpiryFunc func(draftID uuid.UUID, pickIndex int)

// PickTimer is a per-observer countdown for the turn on the clock. It is
// advisory: expiring only calls onExpire, it never touches the session.
type PickTimer struct {
	clock    clockwork.Clock
	onExpire ExpiryFunc

	mu       sync.Mutex
	timer    clockwork.Timer
	gen      uint64
	observed bool
	draftID  uuid.UUID
	index    int
	seconds  int
	deadline time.Time
}

// NewPickTimer creates a stopped timer.
func NewPickTimer(clock clockwork.Clock, onExpire ExpiryFunc) *PickTimer {
	return &PickTimer{clock: clock, onExpire: onExpire}
}

// Observe re-arms the timer when the turn changed since the last snapshot,
// and stops it when the draft is not live, is complete, or has no time
// limit. Observing the same turn again leaves the countdown running.
func (t *PickTimer) Observe(s *models.DraftSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Status != models.SessionStatusLive || s.PerTurnSeconds <= 0 || s.PickIndex >= s.TotalPicks() {
		t.stopLocked()
		t.observed = false
		return
	}
	if t.observed && t.draftID == s.ID && t.index == s.PickIndex && t.seconds == s.PerTurnSeconds {
		return
	}

	t.stopLocked()
	t.observed = true
	t.draftID = s.ID
	t.index = s.PickIndex
	t.seconds = s.PerTurnSeconds
	t.armLocked(time.Duration(s.PerTurnSeconds) * time.Second)
}

func (t *PickTimer) armLocked(d time.Duration) {
	t.gen++
	gen, draftID, index := t.gen, t.draftID, t.index
	t.deadline = t.clock.Now().Add(d)
	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.deadline = time.Time{}
		t.mu.Unlock()
		t.onExpire(draftID, index)
	})
}

// Stop disarms the timer. A pending expiry is cancelled.
func (t *PickTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.observed = false
}

func (t *PickTimer) stopLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.deadline = time.Time{}
}

// Deadline returns when the armed turn expires, or false when disarmed.
func (t *PickTimer) Deadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return time.Time{}, false
	}
	return t.deadline, true
}

// Remaining returns the time left on the armed turn, zero when disarmed.
func (t *PickTimer) Remaining() time.Duration {
	deadline, ok := t.Deadline()
	if !ok {
		return 0
	}
	if left := deadline.Sub(t.clock.Now()); left > 0 {
		return left
	}
	return 0
}
