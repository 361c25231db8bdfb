package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/draft/events"
)

// Handler processes one event. A returned error causes redelivery.
type Handler func(ctx context.Context, env events.Envelope) error

type ConsumerConfig struct {
	Stream        string
	Name          string // Durable name; empty for an ephemeral consumer
	Description   string
	FilterSubject string
	DeliverPolicy jetstream.DeliverPolicy
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

// DefaultConsumerConfig follows new events only; snapshots are re-read from
// the store so there is nothing to replay.
func DefaultConsumerConfig(name string) ConsumerConfig {
	return ConsumerConfig{
		Stream:        DefaultStreamName,
		Name:          name,
		FilterSubject: DefaultSubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// Consumer feeds events from a JetStream consumer to a Handler.
type Consumer struct {
	consumer jetstream.Consumer
	handler  Handler
	cfg      ConsumerConfig
}

// NewConsumer gets or creates the consumer described by cfg.
func NewConsumer(ctx context.Context, js jetstream.JetStream, cfg ConsumerConfig, handler Handler) (*Consumer, error) {
	stream, err := js.Stream(ctx, cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	cc := jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		Description:   cfg.Description,
		FilterSubject: cfg.FilterSubject,
		DeliverPolicy: cfg.DeliverPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    cfg.MaxDeliver,
		AckWait:       cfg.AckWait,
		MaxAckPending: cfg.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	var consumer jetstream.Consumer
	if cfg.Name != "" {
		consumer, err = stream.Consumer(ctx, cfg.Name)
	}
	if cfg.Name == "" || err != nil {
		consumer, err = stream.CreateConsumer(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", cfg.Name).
			Str("stream", cfg.Stream).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", cfg.Name).
			Str("stream", cfg.Stream).
			Msg("using existing JetStream consumer")
	}

	return &Consumer{consumer: consumer, handler: handler, cfg: cfg}, nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().
		Str("consumer", c.cfg.Name).
		Str("filter", c.cfg.FilterSubject).
		Msg("starting JetStream consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("consumer", c.cfg.Name).Msg("consumer shutting down")
			return nil
		case msg := <-messageCh:
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg jetstream.Msg) {
	env, err := Decode(msg.Data())
	if err != nil {
		// Redelivering a malformed message cannot help.
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undecodable event")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
		return
	}

	if err := c.handler(ctx, env); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Str("event_id", env.ID.String()).
			Msg("failed to process event")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ACK message")
	}
}

// Decode parses a published envelope.
func Decode(data []byte) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.DraftID == uuid.Nil {
		return events.Envelope{}, errors.New("event envelope has no draft id")
	}
	if env.EventType == "" {
		return events.Envelope{}, errors.New("event envelope has no event type")
	}
	return env, nil
}
