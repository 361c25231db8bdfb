package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/mcdev12/countrydraft/go/internal/sqlutil"
)

// EventWriter persists events inside the caller's transaction.
type EventWriter interface {
	InsertEvents(ctx context.Context, tx pgx.Tx, draftID uuid.UUID, evts []events.Event) error
}

// Repository is the Postgres-backed Store. Every mutation runs in a
// transaction holding the session row lock, and writes its events to the
// outbox in that same transaction.
type Repository struct {
	pool   *pgxpool.Pool
	outbox EventWriter
	now    func() time.Time
}

// NewRepository creates a new session repository
func NewRepository(pool *pgxpool.Pool, outbox EventWriter) *Repository {
	return &Repository{
		pool:   pool,
		outbox: outbox,
		now:    time.Now,
	}
}

var _ Store = (*Repository)(nil)

const sessionColumns = `id, league_id, participants, draft_order, simulated, pick_index,
	recent_picks, manual_picks, status, per_turn_seconds, expiry_policy, max_items,
	version, schema_version, started_at, completed_at, created_at, updated_at`

const (
	getSessionQuery          = `SELECT ` + sessionColumns + ` FROM draft_sessions WHERE id = $1`
	getSessionForUpdateQuery = getSessionQuery + ` FOR UPDATE`
	listLiveSessionsQuery    = `SELECT ` + sessionColumns + ` FROM draft_sessions WHERE status = 'LIVE' ORDER BY updated_at`

	insertSessionQuery = `INSERT INTO draft_sessions (` + sessionColumns + `)
	VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (id) DO NOTHING`

	updateSessionQuery = `UPDATE draft_sessions SET
	league_id = $2, participants = $3::jsonb, draft_order = $4::jsonb, simulated = $5::jsonb,
	pick_index = $6, recent_picks = $7::jsonb, manual_picks = $8::jsonb, status = $9,
	per_turn_seconds = $10, expiry_policy = $11, max_items = $12, version = $13,
	schema_version = $14, started_at = $15, completed_at = $16, created_at = $17, updated_at = $18
	WHERE id = $1 AND version = $19`
)

// Get returns the stored session without locking it.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, getSessionQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", draft.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft session: %w", err)
	}
	return s, nil
}

// ListLive returns every live session.
func (r *Repository) ListLive(ctx context.Context) ([]*models.DraftSession, error) {
	rows, err := r.pool.Query(ctx, listLiveSessionsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list live sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.DraftSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan live session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list live sessions: %w", err)
	}
	return out, nil
}

// Update locks the session row, applies fn, and persists the result.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.DraftSession, error) {
	var out *models.DraftSession
	err := sqlutil.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanSession(tx.QueryRow(ctx, getSessionForUpdateQuery, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", draft.ErrSessionNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock draft session: %w", err)
		}

		work := draft.Clone(current)
		evts, err := fn(work)
		if errors.Is(err, ErrUnchanged) {
			out = current
			return nil
		}
		if err != nil {
			return err
		}

		work.Version = current.Version + 1
		work.UpdatedAt = r.now().UTC()
		if err := r.write(ctx, tx, updateSessionQuery, work, current.Version); err != nil {
			return err
		}
		if err := r.outbox.InsertEvents(ctx, tx, id, evts); err != nil {
			return fmt.Errorf("failed to write outbox events: %w", err)
		}
		out = work
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert locks the session row if it exists, applies fn, and inserts or
// updates. Two creators racing on a missing row resolve through the primary
// key: the loser gets draft.ErrConflict and should retry.
func (r *Repository) Upsert(ctx context.Context, id uuid.UUID, fn UpsertFunc) (*models.DraftSession, error) {
	var out *models.DraftSession
	err := sqlutil.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanSession(tx.QueryRow(ctx, getSessionForUpdateQuery, id))
		if errors.Is(err, pgx.ErrNoRows) {
			current = nil
		} else if err != nil {
			return fmt.Errorf("failed to lock draft session: %w", err)
		}

		var existing *models.DraftSession
		if current != nil {
			existing = draft.Clone(current)
		}
		next, evts, err := fn(existing)
		if errors.Is(err, ErrUnchanged) && current != nil {
			out = current
			return nil
		}
		if err != nil {
			return err
		}

		now := r.now().UTC()
		next.ID = id
		next.UpdatedAt = now
		if current == nil {
			next.Version = 1
			if next.CreatedAt.IsZero() {
				next.CreatedAt = now
			}
			if err := r.write(ctx, tx, insertSessionQuery, next, 0); err != nil {
				return err
			}
		} else {
			next.Version = current.Version + 1
			if err := r.write(ctx, tx, updateSessionQuery, next, current.Version); err != nil {
				return err
			}
		}
		if err := r.outbox.InsertEvents(ctx, tx, id, evts); err != nil {
			return fmt.Errorf("failed to write outbox events: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) write(ctx context.Context, tx pgx.Tx, query string, s *models.DraftSession, prevVersion int64) error {
	args, err := writeArgs(query, s, prevVersion)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write draft session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: draft session %s was written concurrently", draft.ErrConflict, s.ID)
	}
	return nil
}

// writeArgs binds s for insertSessionQuery or updateSessionQuery. The update
// takes prevVersion as its last parameter.
func writeArgs(query string, s *models.DraftSession, prevVersion int64) ([]any, error) {
	participants, err := json.Marshal(nonNil(s.Participants))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal participants: %w", err)
	}
	order, err := json.Marshal(nonNil(s.DraftOrder))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft order: %w", err)
	}
	simulated, err := json.Marshal(nonNil(s.Simulated))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal simulated participants: %w", err)
	}
	recent, err := json.Marshal(nonNil(s.RecentPicks))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recent picks: %w", err)
	}
	manual, err := json.Marshal(nonNil(s.ManualPicks))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manual picks: %w", err)
	}

	args := []any{
		s.ID,
		pgtype.UUID{Bytes: s.LeagueID, Valid: s.LeagueID != uuid.Nil},
		string(participants),
		string(order),
		string(simulated),
		s.PickIndex,
		string(recent),
		string(manual),
		string(s.Status),
		s.PerTurnSeconds,
		string(s.ExpiryPolicy),
		s.MaxItems,
		s.Version,
		s.SchemaVersion,
		sqlutil.ToTimestamptz(s.StartedAt),
		sqlutil.ToTimestamptz(s.CompletedAt),
		s.CreatedAt,
		s.UpdatedAt,
	}
	if query == updateSessionQuery {
		args = append(args, prevVersion)
	}
	return args, nil
}

func scanSession(row pgx.Row) (*models.DraftSession, error) {
	var (
		s                                               models.DraftSession
		leagueID                                        pgtype.UUID
		participants, order, simulated, recent, manual []byte
		status, policy                                  string
		startedAt, completedAt                          pgtype.Timestamptz
	)
	err := row.Scan(
		&s.ID, &leagueID, &participants, &order, &simulated, &s.PickIndex,
		&recent, &manual, &status, &s.PerTurnSeconds, &policy, &s.MaxItems,
		&s.Version, &s.SchemaVersion, &startedAt, &completedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if leagueID.Valid {
		s.LeagueID = uuid.UUID(leagueID.Bytes)
	}
	s.Status = models.SessionStatus(status)
	s.ExpiryPolicy = models.ExpiryPolicy(policy)
	s.StartedAt = sqlutil.FromTimestamptz(startedAt)
	s.CompletedAt = sqlutil.FromTimestamptz(completedAt)

	for _, col := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"participants", participants, &s.Participants},
		{"draft_order", order, &s.DraftOrder},
		{"simulated", simulated, &s.Simulated},
		{"recent_picks", recent, &s.RecentPicks},
		{"manual_picks", manual, &s.ManualPicks},
	} {
		if len(col.data) == 0 {
			continue
		}
		if err := json.Unmarshal(col.data, col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", col.name, err)
		}
	}
	return &s, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
