package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/models"
)

// DefaultSubject covers every membership event the league service publishes.
const DefaultSubject = "roster.events.>"

// MembershipHandler reacts to one roster change.
type MembershipHandler func(ctx context.Context, ev models.MembershipEvent) error

// Subscriber listens for roster membership events on core NATS.
type Subscriber struct {
	nc      *nats.Conn
	subject string
	handle  MembershipHandler
}

func NewSubscriber(nc *nats.Conn, subject string, handle MembershipHandler) *Subscriber {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Subscriber{nc: nc, subject: subject, handle: handle}
}

// Run subscribes and blocks until ctx is cancelled. Messages are handled one
// at a time, in arrival order.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		s.process(ctx, msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	log.Info().Str("subject", s.subject).Msg("listening for roster events")

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain roster subscription")
	}
	return nil
}

func (s *Subscriber) process(ctx context.Context, subject string, data []byte) {
	ev, err := DecodeMembershipEvent(data)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("dropping malformed roster event")
		return
	}
	if err := s.handle(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("division_id", ev.DivisionID.String()).
			Str("participant_id", ev.ParticipantID.String()).
			Str("action", string(ev.Action)).
			Msg("failed to handle roster event")
	}
}

// DecodeMembershipEvent parses and checks a published roster change.
func DecodeMembershipEvent(data []byte) (models.MembershipEvent, error) {
	var ev models.MembershipEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.MembershipEvent{}, fmt.Errorf("failed to decode membership event: %w", err)
	}
	if ev.DivisionID == uuid.Nil {
		return models.MembershipEvent{}, errors.New("membership event has no division id")
	}
	switch ev.Action {
	case models.MembershipJoined, models.MembershipLeft:
	default:
		return models.MembershipEvent{}, fmt.Errorf("membership event has unknown action %q", ev.Action)
	}
	return ev, nil
}
