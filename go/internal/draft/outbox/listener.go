package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to sweep for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int // Max events to fetch per sweep
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Publisher delivers an event to the bus.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Store is what the relay needs from the outbox table.
type Store interface {
	FetchByID(ctx context.Context, id uuid.UUID) (*events.Envelope, error)
	FetchUnsent(ctx context.Context, limit int) ([]events.Envelope, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	CountUnsent(ctx context.Context) (int, error)
}

// notifier is the subset of *pq.Listener the relay uses.
type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Listener relays outbox rows to the bus as soon as Postgres notifies about
// them, with a periodic sweep for anything a dropped connection missed.
type Listener struct {
	store     Store
	listener  notifier
	publisher Publisher
	metrics   MetricsCollector
	cfg       ListenerConfig

	mu        sync.Mutex
	running   bool
	processed uint64
	lastEvent time.Time
}

// NewListener opens a LISTEN connection on cfg.NotifyChannel.
func NewListener(store Store, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return newListener(store, l, publisher, metrics, cfg), nil
}

func newListener(store Store, n notifier, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) *Listener {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Listener{
		store:     store,
		listener:  n,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Start relays until ctx is cancelled. Events left over from a previous run
// are swept first.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	l.setRunning(true)
	defer l.setRunning(false)

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	notes := l.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-notes:
			if note == nil {
				// The connection was re-established; anything sent meanwhile
				// was missed.
				if err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// Stats returns how many events were relayed and when the last one was.
func (l *Listener) Stats() (processed uint64, last time.Time, running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed, l.lastEvent, l.running
}

func (l *Listener) setRunning(v bool) {
	l.mu.Lock()
	l.running = v
	l.mu.Unlock()
}

// handleNotification relays the event whose id is in the notification payload.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	env, err := l.store.FetchByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Already relayed by a sweep.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return l.relay(ctx, *env)
}

// processUnsent relays every unsent event in batches.
func (l *Listener) processUnsent(ctx context.Context) error {
	start := time.Now()
	total := 0
	defer func() {
		if total > 0 {
			l.metrics.RecordBatchProcessed(total, time.Since(start))
		}
	}()

	if lag, err := l.store.CountUnsent(ctx); err == nil {
		l.metrics.RecordOutboxLag(lag)
	}

	for {
		unsent, err := l.store.FetchUnsent(ctx, l.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
		}
		relayed := 0
		for _, env := range unsent {
			if err := l.relay(ctx, env); err != nil {
				log.Error().Err(err).Str("event_id", env.ID.String()).Msg("failed to relay event")
				continue
			}
			relayed++
		}
		total += relayed
		// Stop when the batch was short or nothing in it could be relayed.
		if len(unsent) < l.cfg.BatchSize || relayed == 0 {
			return nil
		}
	}
}

func (l *Listener) relay(ctx context.Context, env events.Envelope) error {
	start := time.Now()
	err := l.publishWithRetry(ctx, env)
	l.metrics.RecordEventProcessed(env.EventType, err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := l.store.MarkSent(ctx, env.ID); err != nil {
		return err
	}

	l.mu.Lock()
	l.processed++
	l.lastEvent = time.Now()
	l.mu.Unlock()

	log.Debug().
		Str("event_id", env.ID.String()).
		Str("event_type", env.EventType).
		Str("draft_id", env.DraftID.String()).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry publishes with a linearly growing delay between attempts.
func (l *Listener) publishWithRetry(ctx context.Context, env events.Envelope) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := l.publisher.Publish(ctx, env)
		l.metrics.RecordPublishAttempt(env.EventType, attempt+1, err == nil)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", env.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", env.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
