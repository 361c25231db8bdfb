package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ItemCatalog defines what the session app needs from the resource catalog
type ItemCatalog interface {
	Contains(code string) bool
}

// App handles draft session business logic
type App struct {
	store  Store
	items  ItemCatalog
	broker *Broker
	clock  clockwork.Clock
}

// NewApp creates a new session App. broker may be nil when snapshots are
// delivered by another process.
func NewApp(store Store, items ItemCatalog, broker *Broker, clock clockwork.Clock) *App {
	return &App{
		store:  store,
		items:  items,
		broker: broker,
		clock:  clock,
	}
}

// Now returns the app clock's current time in UTC.
func (a *App) Now() time.Time {
	return a.clock.Now().UTC()
}

// GetState returns the current session.
func (a *App) GetState(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	s, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft state: %w", err)
	}
	return s, nil
}

// ListLive returns every live session.
func (a *App) ListLive(ctx context.Context) ([]*models.DraftSession, error) {
	sessions, err := a.store.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list live drafts: %w", err)
	}
	return sessions, nil
}

// ApplyPick submits a pick for the participant on the clock.
func (a *App) ApplyPick(ctx context.Context, req ApplyPickRequest) (*models.DraftSession, error) {
	if err := a.validateApplyPickRequest(req); err != nil {
		return nil, err
	}
	code := catalog.Normalize(req.ItemCode)

	s, err := a.Mutate(ctx, req.SessionID, func(s *models.DraftSession) ([]events.Event, error) {
		if req.ExpectedPickIndex != nil && *req.ExpectedPickIndex != s.PickIndex {
			return nil, fmt.Errorf("%w: expected pick %d, draft is at %d", draft.ErrConflict, *req.ExpectedPickIndex, s.PickIndex)
		}
		err := draft.ApplyPick(s, draft.PickInput{
			ParticipantID: req.ParticipantID,
			ItemCode:      code,
			Source:        req.Source,
			Now:           a.Now(),
		})
		if err != nil {
			return nil, err
		}
		return PickEvents(s, events.TypePickMade)
	})
	a.logOutcome("apply_pick", req.SessionID, err, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("participant_id", req.ParticipantID.String()).Str("item_code", code)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply pick: %w", err)
	}
	return s, nil
}

func (a *App) validateApplyPickRequest(req ApplyPickRequest) error {
	if req.SessionID == uuid.Nil {
		return fmt.Errorf("%w: session id is required", draft.ErrInvalidRequest)
	}
	if req.ParticipantID == uuid.Nil {
		return fmt.Errorf("%w: participant id is required", draft.ErrInvalidRequest)
	}
	switch req.Source {
	case "", models.PickSourceParticipant, models.PickSourceAuto:
	default:
		return fmt.Errorf("%w: source %s is reserved for overrides", draft.ErrInvalidRequest, req.Source)
	}
	code := catalog.Normalize(req.ItemCode)
	if code == "" {
		return fmt.Errorf("%w: item code is required", draft.ErrInvalidRequest)
	}
	if !a.items.Contains(code) {
		return fmt.Errorf("%w: %s", draft.ErrUnknownItem, code)
	}
	return nil
}

// Start moves a scheduled draft to live. Starting a live draft is a no-op.
func (a *App) Start(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	s, err := a.Mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		switch s.Status {
		case models.SessionStatusCompleted:
			return nil, draft.ErrDraftComplete
		case models.SessionStatusLive:
			return nil, ErrUnchanged
		}
		if err := draft.Validate(s); err != nil {
			return nil, err
		}

		now := a.Now()
		s.Status = models.SessionStatusLive
		s.StartedAt = &now
		ev, err := events.New(events.TypeDraftStarted, events.DraftStartedPayload{
			DraftID:      s.ID.String(),
			StartedAt:    now,
			Participants: len(s.Participants),
			TotalPicks:   s.TotalPicks(),
		})
		if err != nil {
			return nil, err
		}
		return []events.Event{ev}, nil
	})
	a.logOutcome("start_draft", id, err, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start draft: %w", err)
	}
	return s, nil
}

// UpdateSettings changes the pick timer and expiry policy.
func (a *App) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*models.DraftSession, error) {
	if req.PerTurnSeconds != nil && *req.PerTurnSeconds < 0 {
		return nil, fmt.Errorf("%w: per turn seconds must not be negative", draft.ErrInvalidRequest)
	}
	if req.ExpiryPolicy != nil && !req.ExpiryPolicy.Valid() {
		return nil, fmt.Errorf("%w: unknown expiry policy %q", draft.ErrInvalidRequest, *req.ExpiryPolicy)
	}

	s, err := a.Mutate(ctx, req.SessionID, func(s *models.DraftSession) ([]events.Event, error) {
		changed := false
		if req.PerTurnSeconds != nil && *req.PerTurnSeconds != s.PerTurnSeconds {
			s.PerTurnSeconds = *req.PerTurnSeconds
			changed = true
		}
		if req.ExpiryPolicy != nil && *req.ExpiryPolicy != s.ExpiryPolicy {
			s.ExpiryPolicy = *req.ExpiryPolicy
			changed = true
		}
		if !changed {
			return nil, ErrUnchanged
		}
		ev, err := events.New(events.TypeSettingsUpdated, events.SettingsUpdatedPayload{
			DraftID:        s.ID.String(),
			PerTurnSeconds: s.PerTurnSeconds,
			ExpiryPolicy:   string(s.ExpiryPolicy),
			UpdatedAt:      a.Now(),
		})
		if err != nil {
			return nil, err
		}
		return []events.Event{ev}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update draft settings: %w", err)
	}
	return s, nil
}

// Mutate runs fn as one locked transaction and publishes the committed state.
// Overrides go through here so they serialize with ApplyPick.
func (a *App) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.DraftSession, error) {
	s, err := a.store.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	a.publish(s)
	return s, nil
}

// Upsert runs fn as one locked read-or-create and publishes the result.
func (a *App) Upsert(ctx context.Context, id uuid.UUID, fn UpsertFunc) (*models.DraftSession, error) {
	s, err := a.store.Upsert(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	a.publish(s)
	return s, nil
}

// Subscribe delivers the current snapshot of id and every committed change
// after it, until the returned func is called.
func (a *App) Subscribe(ctx context.Context, id uuid.UUID, fn Listener) (func(), error) {
	if a.broker == nil {
		return nil, errors.New("subscriptions are not available in this process")
	}
	return a.broker.Watch(ctx, id, a.store.Get, fn)
}

// SubscribeAll delivers every committed change of every session.
func (a *App) SubscribeAll(fn Listener) func() {
	if a.broker == nil {
		return func() {}
	}
	return a.broker.SubscribeAll(fn)
}

func (a *App) publish(s *models.DraftSession) {
	if a.broker != nil {
		a.broker.Publish(s)
	}
}

func (a *App) logOutcome(op string, id uuid.UUID, err error, fields func(*zerolog.Event) *zerolog.Event) {
	if err == nil {
		return
	}
	var ev *zerolog.Event
	switch {
	case draft.IsStructural(err):
		ev = log.Error().Err(err).Str("repair", "reinitialize the draft")
	case draft.IsContention(err), errors.Is(err, draft.ErrDraftComplete):
		ev = log.Debug().Err(err)
	default:
		ev = log.Info().Err(err)
	}
	ev = ev.Str("op", op).Str("draft_id", id.String())
	if fields != nil {
		ev = fields(ev)
	}
	ev.Msg("draft mutation rejected")
}

// Describe derives the turn state of s.
func Describe(s *models.DraftSession) Snapshot {
	actor, err := draft.Turn(s)
	return Snapshot{
		Session:      s,
		CurrentActor: actor,
		Holdings:     draft.Holdings(s),
		TurnErr:      err,
	}
}

// PickEvents builds the events for the sequential pick just appended to s,
// plus DraftCompleted when that pick finished the draft.
func PickEvents(s *models.DraftSession, eventType string) ([]events.Event, error) {
	if len(s.RecentPicks) == 0 {
		return nil, nil
	}
	rec := s.RecentPicks[len(s.RecentPicks)-1]
	slot := draft.SlotFor(rec.PickIndexAtTime, len(s.Participants))

	made, err := events.New(eventType, events.PickMadePayload{
		DraftID:       s.ID.String(),
		ParticipantID: rec.ParticipantID.String(),
		ItemCode:      rec.ItemCode,
		PickIndex:     rec.PickIndexAtTime,
		Round:         slot.Round,
		Pick:          slot.Position,
		Source:        string(rec.Source),
		MadeAt:        rec.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	out := []events.Event{made}

	if s.Status == models.SessionStatusCompleted && s.CompletedAt != nil {
		var duration time.Duration
		if s.StartedAt != nil {
			duration = s.CompletedAt.Sub(*s.StartedAt)
		}
		done, err := events.New(events.TypeDraftCompleted, events.DraftCompletedPayload{
			DraftID:     s.ID.String(),
			CompletedAt: *s.CompletedAt,
			Duration:    duration.String(),
			TotalPicks:  s.TotalPicks(),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, done)
	}
	return out, nil
}
