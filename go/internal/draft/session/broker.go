package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// Listener receives full session snapshots. It is called from the
// subscriber's own goroutine, one snapshot at a time.
type Listener func(s *models.DraftSession)

// Broker fans committed snapshots out to subscribers. Each subscriber has a
// one-slot mailbox per session: a newer snapshot replaces an undelivered
// older one, so a slow listener sees the latest state and never blocks the
// writer. Snapshots older than one already delivered are dropped.
type Broker struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uuid.UUID]map[uint64]*subscriber // uuid.Nil holds SubscribeAll listeners
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uuid.UUID]map[uint64]*subscriber)}
}

// Subscribe registers fn for snapshots of one session.
func (b *Broker) Subscribe(sessionID uuid.UUID, fn Listener) func() {
	return b.subscribe(sessionID, fn).unsubscribe
}

// SubscribeAll registers fn for snapshots of every session.
func (b *Broker) SubscribeAll(fn Listener) func() {
	return b.subscribe(uuid.Nil, fn).unsubscribe
}

// LoadFunc reads the committed snapshot of a session.
type LoadFunc func(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)

// Watch subscribes fn to one session and seeds it with the snapshot returned
// by load. Registering before loading means no commit in between is missed.
func (b *Broker) Watch(ctx context.Context, sessionID uuid.UUID, load LoadFunc, fn Listener) (func(), error) {
	sub := b.subscribe(sessionID, fn)
	s, err := load(ctx, sessionID)
	if err != nil {
		sub.unsubscribe()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	sub.offer(s)
	return sub.unsubscribe, nil
}

func (b *Broker) subscribe(key uuid.UUID, fn Listener) *subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{
		id:      b.nextID,
		key:     key,
		fn:      fn,
		broker:  b,
		pending:   make(map[uuid.UUID]*models.DraftSession),
		delivered: make(map[uuid.UUID]int64),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if b.closed {
		close(sub.done)
		return sub
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]*subscriber)
	}
	b.subs[key][sub.id] = sub
	go sub.run()
	return sub
}

// Publish offers s to every subscriber of its session and to every
// SubscribeAll listener.
func (b *Broker) Publish(s *models.DraftSession) {
	if s == nil {
		return
	}
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs[s.ID])+len(b.subs[uuid.Nil]))
	for _, sub := range b.subs[s.ID] {
		targets = append(targets, sub)
	}
	if s.ID != uuid.Nil {
		for _, sub := range b.subs[uuid.Nil] {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.offer(draft.Clone(s))
	}
}

// Close stops every subscriber. Later subscriptions receive nothing.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*subscriber
	for _, group := range b.subs {
		for _, sub := range group {
			all = append(all, sub)
		}
	}
	b.subs = make(map[uuid.UUID]map[uint64]*subscriber)
	b.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
}

func (b *Broker) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if group, ok := b.subs[sub.key]; ok {
		delete(group, sub.id)
		if len(group) == 0 {
			delete(b.subs, sub.key)
		}
	}
}

type subscriber struct {
	id     uint64
	key    uuid.UUID
	fn     Listener
	broker *Broker

	mu      sync.Mutex
	pending map[uuid.UUID]*models.DraftSession
	// delivered holds the last version handed to fn per live session.
	// Completed sessions are dropped from it.
	delivered map[uuid.UUID]int64

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscriber) offer(snap *models.DraftSession) {
	s.mu.Lock()
	if cur, ok := s.pending[snap.ID]; ok && cur.Version > snap.Version {
		s.mu.Unlock()
		return
	}
	s.pending[snap.ID] = snap
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		batch := s.pending
		s.pending = make(map[uuid.UUID]*models.DraftSession)
		s.mu.Unlock()

		for id, snap := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			if !s.deliverable(id, snap) {
				continue
			}
			s.fn(snap)
		}
	}
}

// deliverable records snap as delivered unless a newer version already was.
func (s *subscriber) deliverable(id uuid.UUID, snap *models.DraftSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.delivered[id]; ok && snap.Version < last {
		return false
	}
	if snap.Status == models.SessionStatusCompleted {
		delete(s.delivered, id)
	} else {
		s.delivered[id] = snap.Version
	}
	return true
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) unsubscribe() {
	s.broker.remove(s)
	s.stop()
}
