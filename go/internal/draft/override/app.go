package override

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/draft/initializer"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// App handles commissioner overrides. Every operation is a single locked
// session transaction, so it serializes with ApplyPick.
type App struct {
	sessions SessionMutator
	init     Initializer
	items    ItemCatalog
	clock    clockwork.Clock
}

// NewApp creates a new override App
func NewApp(sessions SessionMutator, init Initializer, items ItemCatalog, clock clockwork.Clock) *App {
	return &App{
		sessions: sessions,
		init:     init,
		items:    items,
		clock:    clock,
	}
}

// Override dispatches req to the matching operation.
func (a *App) Override(ctx context.Context, req OverrideRequest) (*models.DraftSession, error) {
	if req.SessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session id is required", draft.ErrInvalidRequest)
	}

	var (
		s   *models.DraftSession
		err error
	)
	switch req.Action {
	case ActionForce:
		s, err = a.ForceDraft(ctx, req.SessionID, req.TargetParticipantID, req.ItemCode)
	case ActionManual:
		s, err = a.ManualInsert(ctx, req.SessionID, req.TargetParticipantID, req.ItemCode)
	case ActionUndo:
		s, err = a.Undo(ctx, req.SessionID)
	case ActionReinit:
		s, err = a.Reinitialize(ctx, req.SessionID, initializer.Options{ResetPicks: req.ResetPicks, ShuffleOrder: req.ShuffleOrder})
	default:
		return nil, fmt.Errorf("%w: unknown override action %q", draft.ErrInvalidRequest, req.Action)
	}

	logger := log.With().
		Str("draft_id", req.SessionID.String()).
		Str("action", string(req.Action)).
		Logger()
	if err != nil {
		if draft.IsStructural(err) {
			logger.Error().Err(err).Str("repair", "reinitialize the draft").Msg("override rejected")
		} else {
			logger.Info().Err(err).Msg("override rejected")
		}
		return nil, err
	}
	logger.Info().Int("pick_index", s.PickIndex).Int64("version", s.Version).Msg("override applied")
	return s, nil
}

// ForceDraft makes the current sequential pick for participant, who need not
// be on the clock. Uniqueness and capacity still apply.
func (a *App) ForceDraft(ctx context.Context, id, participant uuid.UUID, itemCode string) (*models.DraftSession, error) {
	code, err := a.validateTarget(participant, itemCode)
	if err != nil {
		return nil, err
	}
	s, err := a.sessions.Mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		err := draft.ApplyPick(s, draft.PickInput{
			ParticipantID: participant,
			ItemCode:      code,
			Source:        models.PickSourceForced,
			SkipTurnCheck: true,
			Now:           a.clock.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return session.PickEvents(s, events.TypePickForced)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to force pick: %w", err)
	}
	return s, nil
}

// ManualInsert records an off-sequence pick. The pick index does not move.
func (a *App) ManualInsert(ctx context.Context, id, participant uuid.UUID, itemCode string) (*models.DraftSession, error) {
	code, err := a.validateTarget(participant, itemCode)
	if err != nil {
		return nil, err
	}
	s, err := a.sessions.Mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		now := a.clock.Now().UTC()
		if err := draft.InsertManual(s, participant, code, now); err != nil {
			return nil, err
		}
		ev, err := events.New(events.TypeManualPickInserted, events.ManualPickInsertedPayload{
			DraftID:       s.ID.String(),
			ParticipantID: participant.String(),
			ItemCode:      code,
			InsertedAt:    now,
		})
		if err != nil {
			return nil, err
		}
		return []events.Event{ev}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert manual pick: %w", err)
	}
	return s, nil
}

// Undo removes the last sequential pick and releases its item.
func (a *App) Undo(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	s, err := a.sessions.Mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		last, err := draft.UndoLast(s)
		if err != nil {
			return nil, err
		}
		ev, err := events.New(events.TypePickUndone, events.PickUndonePayload{
			DraftID:       s.ID.String(),
			ParticipantID: last.ParticipantID.String(),
			ItemCode:      last.ItemCode,
			PickIndex:     last.PickIndexAtTime,
			UndoneAt:      a.clock.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return []events.Event{ev}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to undo pick: %w", err)
	}
	return s, nil
}

// Reinitialize rebuilds the session from the current roster.
func (a *App) Reinitialize(ctx context.Context, id uuid.UUID, opts initializer.Options) (*models.DraftSession, error) {
	s, err := a.init.InitializeFromRoster(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to reinitialize draft: %w", err)
	}
	return s, nil
}

func (a *App) validateTarget(participant uuid.UUID, itemCode string) (string, error) {
	if participant == uuid.Nil {
		return "", fmt.Errorf("%w: target participant is required", draft.ErrInvalidRequest)
	}
	code := catalog.Normalize(itemCode)
	if code == "" {
		return "", fmt.Errorf("%w: item code is required", draft.ErrInvalidRequest)
	}
	if !a.items.Contains(code) {
		return "", fmt.Errorf("%w: %s", draft.ErrUnknownItem, code)
	}
	return code, nil
}
