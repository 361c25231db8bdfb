package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultWorkers   = 10
	maxPickAttempts  = 3
	workBufferFactor = 4
)

// DraftAPI defines what the orchestrator needs from the draft service. It is
// satisfied in process by *session.App and remotely by *draftrpc.Client.
type DraftAPI interface {
	GetState(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	ApplyPick(ctx context.Context, req session.ApplyPickRequest) (*models.DraftSession, error)
	ListLive(ctx context.Context) ([]*models.DraftSession, error)
}

// SnapshotSource delivers committed snapshots of every session.
type SnapshotSource interface {
	SubscribeAll(fn session.Listener) func()
}

type jobReason string

const (
	reasonSimulated jobReason = "simulated"
	reasonExpired   jobReason = "timer_expired"
)

type jobKey struct {
	draftID   uuid.UUID
	pickIndex int
}

type job struct {
	jobKey
	reason jobReason
}

type watcher struct {
	timer        *PickTimer
	flaggedAtVer int64
}

// Orchestrator is the single server-side authority that resolves turns
// nobody else will: simulated participants' turns, and expired turns under
// an automatic policy. It submits through the same ApplyPick path as
// everyone else, with the observed pick index as a guard, so a duplicate
// resolver elsewhere can never double-advance a draft.
type Orchestrator struct {
	api        DraftAPI
	source     SnapshotSource
	resolver   *Resolver
	clock      clockwork.Clock
	instanceID string

	numWorkers int
	workCh     chan job

	// Track in-flight work to prevent duplicate processing. Jobs that do not
	// fit in workCh wait in backlog until a worker finishes one.
	inFlight   map[jobKey]bool
	backlog    []job
	inFlightMu sync.Mutex

	watchersMu sync.Mutex
	watchers   map[uuid.UUID]*watcher
}

// NewOrchestrator creates a new draft orchestrator with a worker pool
func NewOrchestrator(api DraftAPI, source SnapshotSource, resolver *Resolver, clock clockwork.Clock, numWorkers int) *Orchestrator {
	if numWorkers < 1 {
		numWorkers = defaultWorkers
	}
	return &Orchestrator{
		api:        api,
		source:     source,
		resolver:   resolver,
		clock:      clock,
		instanceID: uuid.New().String()[:8],
		numWorkers: numWorkers,
		workCh:     make(chan job, numWorkers*workBufferFactor),
		inFlight:   make(map[jobKey]bool),
		watchers:   make(map[uuid.UUID]*watcher),
	}
}

// Run watches every live draft until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Msg("draft orchestrator started")

	var wg sync.WaitGroup
	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, i)
	}

	unsubscribe := o.source.SubscribeAll(o.Observe)

	live, err := o.api.ListLive(ctx)
	if err != nil {
		log.Error().Err(err).Str("instance", o.instanceID).Msg("failed to seed live drafts")
	}
	for _, s := range live {
		o.Observe(s)
	}
	log.Info().Str("instance", o.instanceID).Int("live_drafts", len(live)).Msg("seeded live drafts")

	<-ctx.Done()
	log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")

	unsubscribe()
	o.watchersMu.Lock()
	for id, w := range o.watchers {
		w.timer.Stop()
		delete(o.watchers, id)
	}
	o.watchersMu.Unlock()

	wg.Wait()
	log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	return nil
}

// Observe reacts to a committed snapshot: it keeps the draft's timer in step
// with the turn and queues simulated participants' picks.
func (o *Orchestrator) Observe(s *models.DraftSession) {
	if s.Status != models.SessionStatusLive {
		o.forget(s.ID)
		return
	}
	w := o.watch(s.ID)
	w.timer.Observe(s)

	actor, err := draft.Turn(s)
	switch {
	case errors.Is(err, draft.ErrDraftComplete):
		o.forget(s.ID)
		return
	case err != nil:
		o.flag(s, w, err)
		return
	}

	if draft.IsSimulated(s, actor) {
		o.enqueue(job{jobKey: jobKey{draftID: s.ID, pickIndex: s.PickIndex}, reason: reasonSimulated})
	}
}

func (o *Orchestrator) onExpire(draftID uuid.UUID, pickIndex int) {
	log.Debug().Str("draft_id", draftID.String()).Int("pick_index", pickIndex).Msg("pick timer expired")
	o.enqueue(job{jobKey: jobKey{draftID: draftID, pickIndex: pickIndex}, reason: reasonExpired})
}

func (o *Orchestrator) watch(id uuid.UUID) *watcher {
	o.watchersMu.Lock()
	defer o.watchersMu.Unlock()
	w, ok := o.watchers[id]
	if !ok {
		w = &watcher{timer: NewPickTimer(o.clock, o.onExpire)}
		o.watchers[id] = w
	}
	return w
}

func (o *Orchestrator) forget(id uuid.UUID) {
	o.watchersMu.Lock()
	w, ok := o.watchers[id]
	delete(o.watchers, id)
	o.watchersMu.Unlock()
	if ok {
		w.timer.Stop()
	}
}

// flag reports a structural problem once per session version.
func (o *Orchestrator) flag(s *models.DraftSession, w *watcher, err error) {
	o.watchersMu.Lock()
	seen := w.flaggedAtVer == s.Version
	w.flaggedAtVer = s.Version
	o.watchersMu.Unlock()
	if seen {
		return
	}
	log.Error().Err(err).
		Str("draft_id", s.ID.String()).
		Int("pick_index", s.PickIndex).
		Str("repair", "reinitialize the draft").
		Msg("draft cannot compute the next turn")
}

// enqueue never drops a turn: a bot turn or an expiry fires once, so a lost
// job would stall the draft.
func (o *Orchestrator) enqueue(j job) {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()
	if o.inFlight[j.jobKey] {
		return
	}
	o.inFlight[j.jobKey] = true

	if len(o.backlog) == 0 {
		select {
		case o.workCh <- j:
			return
		default:
		}
	}
	o.backlog = append(o.backlog, j)
	log.Debug().Str("draft_id", j.draftID.String()).Int("backlog", len(o.backlog)).Msg("work channel full, turn queued")
}

// done releases k and moves as much backlog into workCh as fits.
func (o *Orchestrator) done(k jobKey) {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()
	delete(o.inFlight, k)

	for len(o.backlog) > 0 {
		select {
		case o.workCh <- o.backlog[0]:
			o.backlog[0] = job{}
			o.backlog = o.backlog[1:]
		default:
			return
		}
	}
}
