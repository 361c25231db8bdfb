package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// StateReader loads the committed snapshot of a session.
type StateReader interface {
	GetState(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
}

// SnapshotPublisher fans a snapshot out to local subscribers.
type SnapshotPublisher interface {
	Publish(s *models.DraftSession)
}

// Feed turns bus events into fresh snapshots for processes that do not own
// the store, such as the gateway and the orchestrator.
type Feed struct {
	state  StateReader
	broker SnapshotPublisher
}

func NewFeed(state StateReader, broker SnapshotPublisher) *Feed {
	return &Feed{state: state, broker: broker}
}

// Handle re-reads the session named by env and publishes it. Several events
// from one commit collapse into the same snapshot downstream.
func (f *Feed) Handle(ctx context.Context, env events.Envelope) error {
	s, err := f.state.GetState(ctx, env.DraftID)
	if errors.Is(err, draft.ErrSessionNotFound) {
		log.Warn().
			Str("draft_id", env.DraftID.String()).
			Str("event_type", env.EventType).
			Msg("event for unknown session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", env.DraftID, err)
	}

	f.broker.Publish(s)
	return nil
}
