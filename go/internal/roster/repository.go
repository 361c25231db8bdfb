package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/countrydraft/go/internal/models"
)

const listDivisionMembersQuery = `SELECT division_id, participant_id, display_name, is_bot, joined_at
	FROM division_members
	WHERE division_id = $1
	ORDER BY joined_at, participant_id`

// Repository reads division membership. Membership is owned by the league
// service; this side never writes it.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListDivisionMembers returns members in join order.
func (r *Repository) ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error) {
	rows, err := r.pool.Query(ctx, listDivisionMembersQuery, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list division members: %w", err)
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RosterMember, error) {
		var m models.RosterMember
		err := row.Scan(&m.DivisionID, &m.ParticipantID, &m.DisplayName, &m.IsBot, &m.JoinedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan division members: %w", err)
	}
	return members, nil
}
