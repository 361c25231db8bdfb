package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

type memoryEntry struct {
	mu      sync.Mutex
	session *models.DraftSession // nil until created
}

// MemoryStore keeps sessions in process. It is used by tests and by the
// API server when DRAFT_STORE=memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*memoryEntry
	now     func() time.Time

	eventsMu sync.Mutex
	events   map[uuid.UUID][]events.Envelope
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]*memoryEntry),
		events:  make(map[uuid.UUID][]events.Envelope),
		now:     time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) entry(id uuid.UUID) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &memoryEntry{}
		m.entries[id] = e
	}
	return e
}

// lookup finds id without creating an entry, so reads of unknown ids leave
// the map untouched.
func (m *MemoryStore) lookup(id uuid.UUID) (*memoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", draft.ErrSessionNotFound, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("%w: %s", draft.ErrSessionNotFound, id)
	}
	return draft.Clone(e.session), nil
}

// Update applies fn under the session's lock.
func (m *MemoryStore) Update(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.DraftSession, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", draft.ErrSessionNotFound, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("%w: %s", draft.ErrSessionNotFound, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := draft.Clone(e.session)
	evts, err := fn(work)
	if errors.Is(err, ErrUnchanged) {
		return draft.Clone(e.session), nil
	}
	if err != nil {
		return nil, err
	}

	work.Version = e.session.Version + 1
	work.UpdatedAt = m.now().UTC()
	e.session = work
	m.record(id, evts)
	return draft.Clone(work), nil
}

// Upsert applies fn under the session's lock, creating the record when absent.
func (m *MemoryStore) Upsert(ctx context.Context, id uuid.UUID, fn UpsertFunc) (*models.DraftSession, error) {
	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var existing *models.DraftSession
	if e.session != nil {
		existing = draft.Clone(e.session)
	}
	next, evts, err := fn(existing)
	if errors.Is(err, ErrUnchanged) && e.session != nil {
		return draft.Clone(e.session), nil
	}
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	next.ID = id
	next.UpdatedAt = now
	if e.session == nil {
		next.Version = 1
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
	} else {
		next.Version = e.session.Version + 1
	}
	e.session = draft.Clone(next)
	m.record(id, evts)
	return next, nil
}

// ListLive returns every live session.
func (m *MemoryStore) ListLive(ctx context.Context) ([]*models.DraftSession, error) {
	m.mu.Lock()
	entries := make([]*memoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var live []*models.DraftSession
	for _, e := range entries {
		e.mu.Lock()
		if e.session != nil && e.session.Status == models.SessionStatusLive {
			live = append(live, draft.Clone(e.session))
		}
		e.mu.Unlock()
	}
	return live, nil
}

// Events returns the events recorded for id, oldest first.
func (m *MemoryStore) Events(id uuid.UUID) []events.Envelope {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	return append([]events.Envelope(nil), m.events[id]...)
}

func (m *MemoryStore) record(id uuid.UUID, evts []events.Event) {
	if len(evts) == 0 {
		return
	}
	now := m.now().UTC()
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	for _, ev := range evts {
		m.events[id] = append(m.events[id], events.Envelope{
			ID:        uuid.New(),
			EventType: ev.Type,
			DraftID:   id,
			Timestamp: now,
			Payload:   ev.Payload,
		})
	}
}
