package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/draft/events"
)

const (
	DefaultStreamName    = "DRAFT_EVENTS"
	DefaultSubjectPrefix = "draft.events"
)

type StreamConfig struct {
	Name            string
	SubjectPrefix   string
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int
	DuplicateWindow time.Duration // Window for WithMsgID de-duplication
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            DefaultStreamName,
		SubjectPrefix:   DefaultSubjectPrefix,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Subject is the subject an event of the given type is published on.
func (c StreamConfig) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", c.SubjectPrefix, eventType)
}

// Publisher publishes outbox envelopes to the draft event stream. The event
// ID doubles as the JetStream message ID, so a relay that re-sends after a
// crash does not produce duplicates inside the de-dup window.
type Publisher struct {
	js  jetstream.JetStream
	cfg StreamConfig
}

// NewPublisher creates or updates the stream and returns a publisher for it.
func NewPublisher(ctx context.Context, js jetstream.JetStream, cfg StreamConfig) (*Publisher, error) {
	if err := EnsureStream(ctx, js, cfg); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return &Publisher{js: js, cfg: cfg}, nil
}

// EnsureStream creates the stream, or updates it when its settings drifted.
// Consumers call it too so they can start before the relay.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg StreamConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.Name,
		Description: "Draft session events relayed from the outbox",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.Name)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", cfg.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !sameStreamConfig(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", cfg.Name).Msg("updated JetStream stream")
	}
	return nil
}

// Publish sends env on the subject for its event type.
func (p *Publisher) Publish(ctx context.Context, env events.Envelope) error {
	msg, err := p.message(env)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(env.ID.String()),
		jetstream.WithExpectStream(p.cfg.Name),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", msg.Subject).
		Str("event_id", env.ID.String()).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published to JetStream")
	return nil
}

func (p *Publisher) message(env events.Envelope) (*nats.Msg, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &nats.Msg{
		Subject: p.cfg.Subject(env.EventType),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{env.EventType},
			"Draft-ID":   []string{env.DraftID.String()},
			"Event-ID":   []string{env.ID.String()},
		},
	}, nil
}

func sameStreamConfig(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates &&
		len(a.Subjects) == len(b.Subjects) &&
		(len(a.Subjects) == 0 || a.Subjects[0] == b.Subjects[0])
}
