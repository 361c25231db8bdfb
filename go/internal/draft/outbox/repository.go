package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
)

// ErrNotFound is returned when an outbox row is missing or already sent.
var ErrNotFound = errors.New("outbox event not found or already sent")

const (
	insertOutboxQuery = `INSERT INTO draft_outbox (id, draft_id, event_type, payload, created_at)
	VALUES ($1, $2, $3, $4::jsonb, $5)`
	fetchOutboxByIDQuery = `SELECT id, draft_id, event_type, payload, created_at
	FROM draft_outbox WHERE id = $1 AND sent_at IS NULL`
	fetchUnsentOutboxQuery = `SELECT id, draft_id, event_type, payload, created_at
	FROM draft_outbox WHERE sent_at IS NULL ORDER BY created_at, id LIMIT $1`
	markOutboxSentQuery    = `UPDATE draft_outbox SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`
	countUnsentOutboxQuery = `SELECT count(*) FROM draft_outbox WHERE sent_at IS NULL`
)

// Repository reads and writes the draft_outbox table.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository creates a new outbox repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// InsertEvents writes evts inside tx, so they commit or roll back with the
// state change that produced them. An insert trigger notifies the relay.
func (r *Repository) InsertEvents(ctx context.Context, tx pgx.Tx, draftID uuid.UUID, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	now := r.now().UTC()
	batch := &pgx.Batch{}
	for _, ev := range evts {
		batch.Queue(insertOutboxQuery, uuid.New(), draftID, ev.Type, string(ev.Payload), now)
	}

	results := tx.SendBatch(ctx, batch)
	for _, ev := range evts {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert %s outbox event: %w", ev.Type, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close outbox batch: %w", err)
	}
	return nil
}

// FetchByID returns an unsent event.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*events.Envelope, error) {
	env, err := scanEnvelope(r.pool.QueryRow(ctx, fetchOutboxByIDQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	return env, nil
}

// FetchUnsent returns up to limit unsent events, oldest first.
func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]events.Envelope, error) {
	rows, err := r.pool.Query(ctx, fetchUnsentOutboxQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.Envelope
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, *env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	return out, nil
}

// MarkSent flags an event as relayed.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, markOutboxSentQuery, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

// CountUnsent returns the relay backlog.
func (r *Repository) CountUnsent(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countUnsentOutboxQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanEnvelope(row pgx.Row) (*events.Envelope, error) {
	var env events.Envelope
	if err := row.Scan(&env.ID, &env.DraftID, &env.EventType, &env.Payload, &env.Timestamp); err != nil {
		return nil, err
	}
	return &env, nil
}
