package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// worker resolves queued turns
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Debug().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case j := <-o.workCh:
			err := o.resolve(ctx, j)
			o.done(j.jobKey)
			if err == nil {
				continue
			}
			ev := log.Error().
				Err(err).
				Str("draft_id", j.draftID.String()).
				Int("pick_index", j.pickIndex).
				Str("reason", string(j.reason)).
				Str("instance", o.instanceID).
				Int("worker_id", workerID)
			if needsRepair(err) {
				ev.Str("repair", "reinitialize the draft").Msg("turn cannot be resolved automatically")
			} else {
				ev.Msg("failed to resolve turn")
			}
		}
	}
}

// resolve submits an automatic pick for the turn in j. A Conflict means the
// chosen item was taken between read and write; the worker re-reads and
// tries again while the turn is unchanged. Any sign that the turn moved on
// ends the job.
func (o *Orchestrator) resolve(ctx context.Context, j job) error {
	for attempt := 1; attempt <= maxPickAttempts; attempt++ {
		s, err := o.api.GetState(ctx, j.draftID)
		if err != nil {
			return fmt.Errorf("failed to read draft: %w", err)
		}
		if s.Status != models.SessionStatusLive || s.PickIndex != j.pickIndex {
			return nil
		}
		actor, err := draft.Turn(s)
		if err != nil {
			if errors.Is(err, draft.ErrDraftComplete) {
				return nil
			}
			return err
		}
		simulated := draft.IsSimulated(s, actor)
		if j.reason == reasonSimulated && !simulated {
			return nil
		}

		item, err := o.resolver.Choose(s, actor)
		if errors.Is(err, ErrManualPolicy) {
			log.Info().
				Str("draft_id", s.ID.String()).
				Str("participant_id", actor.String()).
				Int("pick_index", s.PickIndex).
				Msg("turn expired under manual policy, left open")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to choose item: %w", err)
		}

		expected := s.PickIndex
		_, err = o.api.ApplyPick(ctx, session.ApplyPickRequest{
			SessionID:         s.ID,
			ParticipantID:     actor,
			ItemCode:          item.Code,
			ExpectedPickIndex: &expected,
			Source:            models.PickSourceAuto,
		})
		switch {
		case err == nil:
			log.Info().
				Str("draft_id", s.ID.String()).
				Str("participant_id", actor.String()).
				Str("item_code", item.Code).
				Int("pick_index", expected).
				Str("reason", string(j.reason)).
				Msg("auto pick applied")
			return nil
		case errors.Is(err, draft.ErrConflict):
			log.Debug().Err(err).Str("draft_id", s.ID.String()).Int("attempt", attempt).Msg("auto pick conflicted, re-reading")
			continue
		case errors.Is(err, draft.ErrWrongTurn), errors.Is(err, draft.ErrDraftComplete), errors.Is(err, draft.ErrDraftNotStarted):
			return nil
		default:
			return fmt.Errorf("failed to apply auto pick: %w", err)
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", draft.ErrConflict, maxPickAttempts)
}

// needsRepair reports whether err comes from the stored draft rather than
// from contention or transport. Retrying such a turn fails the same way.
func needsRepair(err error) bool {
	return draft.IsStructural(err) ||
		errors.Is(err, draft.ErrCapacityExceeded) ||
		errors.Is(err, draft.ErrUnknownParticipant)
}
