package initializer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// App builds and repairs draft sessions from roster membership
type App struct {
	sessions SessionStore
	roster   RosterSource
	legacy   LegacySource
	items    ItemCatalog
	clock    clockwork.Clock
	defaults Defaults

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewApp creates a new initializer App. legacy may be nil.
func NewApp(sessions SessionStore, roster RosterSource, legacy LegacySource, items ItemCatalog, clock clockwork.Clock, rng *rand.Rand, defaults Defaults) *App {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if defaults.MaxItems < 1 {
		defaults.MaxItems = models.DefaultMaxItems
	}
	if !defaults.ExpiryPolicy.Valid() {
		defaults.ExpiryPolicy = models.ExpiryPolicyManual
	}
	if defaults.PerTurnSeconds < 0 {
		defaults.PerTurnSeconds = 0
	}
	return &App{
		sessions: sessions,
		roster:   roster,
		legacy:   legacy,
		items:    items,
		clock:    clock,
		defaults: defaults,
		rng:      rng,
	}
}

// InitializeFromRoster loads the division's members and initializes its
// session from them.
func (a *App) InitializeFromRoster(ctx context.Context, sessionID uuid.UUID, opts Options) (*models.DraftSession, error) {
	members, err := a.roster.ListDivisionMembers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list division members: %w", err)
	}
	return a.Initialize(ctx, sessionID, members, opts)
}

// Initialize rebuilds participants and draft order for sessionID from
// members. With both options false and an unchanged roster it writes
// nothing. A missing session is created, from the division's legacy
// embedded copy when one is still present.
func (a *App) Initialize(ctx context.Context, sessionID uuid.UUID, members []models.RosterMember, opts Options) (*models.DraftSession, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session id is required", draft.ErrInvalidRequest)
	}
	ids, simulated := memberIDs(members)
	if len(ids) == 0 {
		log.Error().
			Str("draft_id", sessionID.String()).
			Str("repair", "assign members to the division").
			Msg("cannot initialize draft from an empty roster")
		return nil, fmt.Errorf("failed to initialize draft %s: %w", sessionID, draft.ErrEmptyRoster)
	}

	var s *models.DraftSession
	var migrated bool
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		migrated = false
		s, err = a.sessions.Upsert(ctx, sessionID, func(existing *models.DraftSession) (*models.DraftSession, []events.Event, error) {
			base := existing
			if base == nil {
				legacy, err := a.loadLegacy(ctx, sessionID)
				if err != nil {
					return nil, nil, err
				}
				if legacy != nil {
					base = a.fromLegacy(sessionID, legacy, ids)
					migrated = true
				}
			}
			return a.rebuild(sessionID, existing, base, ids, simulated, opts, migrated)
		})
		if !errors.Is(err, draft.ErrConflict) {
			break
		}
		log.Debug().Str("draft_id", sessionID.String()).Msg("draft session created concurrently, retrying initialize")
	}
	if err != nil {
		if draft.IsStructural(err) {
			log.Error().Err(err).
				Str("draft_id", sessionID.String()).
				Str("repair", "reinitialize with reset").
				Msg("draft initialize rejected")
		}
		return nil, fmt.Errorf("failed to initialize draft: %w", err)
	}

	if migrated {
		if err := a.legacy.MarkLegacyMigrated(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("draft_id", sessionID.String()).Msg("failed to mark legacy draft migrated")
		} else {
			log.Info().Str("draft_id", sessionID.String()).Int("pick_index", s.PickIndex).Msg("migrated legacy draft")
		}
	}
	return s, nil
}

// HandleMembershipEvent repairs the division's session after a roster
// change. The order is preserved and pick progress is kept.
func (a *App) HandleMembershipEvent(ctx context.Context, ev models.MembershipEvent) error {
	logger := log.With().
		Str("draft_id", ev.DivisionID.String()).
		Str("participant_id", ev.ParticipantID.String()).
		Str("action", string(ev.Action)).
		Logger()

	s, err := a.InitializeFromRoster(ctx, ev.DivisionID, Options{})
	switch {
	case errors.Is(err, draft.ErrEmptyRoster):
		logger.Error().Err(err).Msg("division roster is empty, draft left untouched")
		return nil
	case draft.IsStructural(err):
		logger.Error().Err(err).Msg("roster change left the draft in an invalid state")
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply membership event: %w", err)
	}

	logger.Info().
		Int("participants", len(s.Participants)).
		Int64("version", s.Version).
		Msg("draft roster reconciled")
	return nil
}

func (a *App) loadLegacy(ctx context.Context, sessionID uuid.UUID) (*models.LegacyDraft, error) {
	if a.legacy == nil {
		return nil, nil
	}
	legacy, err := a.legacy.GetLegacyDraft(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy draft: %w", err)
	}
	return legacy, nil
}

// rebuild computes the next session from base. existing is the stored record
// and is nil when base is new or came from a legacy copy.
func (a *App) rebuild(id uuid.UUID, existing, base *models.DraftSession, ids, simulated []uuid.UUID, opts Options, migrated bool) (*models.DraftSession, []events.Event, error) {
	now := a.clock.Now().UTC()

	var next *models.DraftSession
	if base != nil {
		next = draft.Clone(base)
	} else {
		next = &models.DraftSession{
			ID:             id,
			Status:         models.SessionStatusScheduled,
			PerTurnSeconds: a.defaults.PerTurnSeconds,
			ExpiryPolicy:   a.defaults.ExpiryPolicy,
			MaxItems:       a.defaults.MaxItems,
			CreatedAt:      now,
		}
	}
	next.SchemaVersion = models.CurrentSchemaVersion
	next.Participants = slices.Clone(ids)
	next.Simulated = simulated

	switch {
	case opts.ShuffleOrder:
		next.DraftOrder = a.shuffle(ids)
	case base != nil:
		next.DraftOrder = preserveOrder(base.DraftOrder, ids)
	default:
		next.DraftOrder = slices.Clone(ids)
	}

	if opts.ResetPicks {
		next.PickIndex = 0
		next.RecentPicks = nil
		next.ManualPicks = nil
		next.CompletedAt = nil
		if next.Status == models.SessionStatusCompleted {
			next.Status = models.SessionStatusScheduled
			next.StartedAt = nil
		}
	} else {
		if next.PickIndex > next.TotalPicks() {
			return nil, nil, fmt.Errorf("%w: %d picks made but %d participants allow %d, reset required",
				draft.ErrInvalidState, next.PickIndex, len(ids), next.TotalPicks())
		}
		switch {
		case next.PickIndex == next.TotalPicks():
			if next.Status != models.SessionStatusCompleted {
				next.Status = models.SessionStatusCompleted
				next.CompletedAt = &now
			}
		case next.Status == models.SessionStatusCompleted:
			next.Status = models.SessionStatusLive
			next.CompletedAt = nil
		}
	}

	if existing != nil && sameLayout(existing, next) {
		return nil, nil, session.ErrUnchanged
	}
	if err := draft.Validate(next); err != nil {
		return nil, nil, err
	}

	ev, err := events.New(events.TypeDraftInitialized, events.DraftInitializedPayload{
		DraftID:       id.String(),
		Participants:  uuidStrings(next.Participants),
		DraftOrder:    uuidStrings(next.DraftOrder),
		ResetPicks:    opts.ResetPicks,
		Shuffled:      opts.ShuffleOrder,
		Migrated:      migrated,
		InitializedAt: now,
	})
	if err != nil {
		return nil, nil, err
	}
	return next, []events.Event{ev}, nil
}

// shuffle returns a Fisher–Yates permutation of ids.
func (a *App) shuffle(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	for i := len(out) - 1; i > 0; i-- {
		j := a.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// preserveOrder keeps the relative order of members still present and
// appends new members in roster order.
func preserveOrder(current, ids []uuid.UUID) []uuid.UUID {
	present := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	out := make([]uuid.UUID, 0, len(ids))
	placed := make(map[uuid.UUID]bool, len(ids))
	for _, id := range current {
		if present[id] && !placed[id] {
			out = append(out, id)
			placed[id] = true
		}
	}
	for _, id := range ids {
		if !placed[id] {
			out = append(out, id)
			placed[id] = true
		}
	}
	return out
}

func memberIDs(members []models.RosterMember) (ids, simulated []uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		if m.ParticipantID == uuid.Nil || seen[m.ParticipantID] {
			continue
		}
		seen[m.ParticipantID] = true
		ids = append(ids, m.ParticipantID)
		if m.IsBot {
			simulated = append(simulated, m.ParticipantID)
		}
	}
	return ids, simulated
}

func sameLayout(a, b *models.DraftSession) bool {
	return slices.Equal(a.Participants, b.Participants) &&
		slices.Equal(a.DraftOrder, b.DraftOrder) &&
		slices.Equal(a.Simulated, b.Simulated) &&
		a.PickIndex == b.PickIndex &&
		a.Status == b.Status &&
		a.SchemaVersion == b.SchemaVersion &&
		slices.Equal(a.RecentPicks, b.RecentPicks) &&
		slices.Equal(a.ManualPicks, b.ManualPicks)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
