package leagues

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/countrydraft/go/internal/models"
)

const (
	getDivisionQuery = `SELECT id, league_id, name, legacy_migrated_at, created_at
	FROM divisions WHERE id = $1`
	getLegacyDraftQuery = `SELECT league_id, legacy_draft, legacy_migrated_at
	FROM divisions WHERE id = $1`
	markLegacyMigratedQuery = `UPDATE divisions SET legacy_migrated_at = $2
	WHERE id = $1 AND legacy_migrated_at IS NULL`
)

// DBTX is the subset of *sql.DB and *sql.Tx the repository uses.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository reads division records owned by the league service. The only
// write is the one-time legacy migration marker.
type Repository struct {
	db  DBTX
	now func() time.Time
}

// NewRepository creates a new leagues repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db, now: time.Now}
}

// GetDivision retrieves a division by ID
func (r *Repository) GetDivision(ctx context.Context, id uuid.UUID) (*models.Division, error) {
	var (
		d          models.Division
		migratedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getDivisionQuery, id).
		Scan(&d.ID, &d.LeagueID, &d.Name, &migratedAt, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDivisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get division: %w", err)
	}
	if migratedAt.Valid {
		t := migratedAt.Time
		d.LegacyMigratedAt = &t
	}
	return &d, nil
}

// GetLegacyDraft returns the embedded draft copy of a division, or nil when
// the division has none, it was already migrated, or it does not exist.
func (r *Repository) GetLegacyDraft(ctx context.Context, divisionID uuid.UUID) (*models.LegacyDraft, error) {
	var (
		leagueID   uuid.UUID
		raw        pqtype.NullRawMessage
		migratedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getLegacyDraftQuery, divisionID).Scan(&leagueID, &raw, &migratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get legacy draft: %w", err)
	}
	return decodeLegacyDraft(divisionID, leagueID, raw, migratedAt)
}

// MarkLegacyMigrated records that the embedded copy has been converted so it
// is never read again.
func (r *Repository) MarkLegacyMigrated(ctx context.Context, divisionID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, markLegacyMigratedQuery, divisionID, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark legacy draft migrated: %w", err)
	}
	return nil
}

func decodeLegacyDraft(divisionID, leagueID uuid.UUID, raw pqtype.NullRawMessage, migratedAt sql.NullTime) (*models.LegacyDraft, error) {
	if migratedAt.Valid || !raw.Valid || len(raw.RawMessage) == 0 || string(raw.RawMessage) == "null" {
		return nil, nil
	}

	var legacy models.LegacyDraft
	if err := json.Unmarshal(raw.RawMessage, &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode legacy draft: %w", err)
	}
	legacy.DivisionID = divisionID
	legacy.LeagueID = leagueID
	return &legacy, nil
}
