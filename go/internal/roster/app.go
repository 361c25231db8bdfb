package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// RosterRepository defines what the app layer needs from the repository
type RosterRepository interface {
	ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error)
}

// App handles roster reads for the draft
type App struct {
	repo RosterRepository
}

// NewApp creates a new roster App
func NewApp(repo RosterRepository) *App {
	return &App{repo: repo}
}

// ListDivisionMembers returns the division's members with duplicate and
// malformed rows removed, keeping the first occurrence.
func (a *App) ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error) {
	if divisionID == uuid.Nil {
		return nil, fmt.Errorf("%w: division id is required", draft.ErrInvalidRequest)
	}

	members, err := a.repo.ListDivisionMembers(ctx, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get division members: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(members))
	out := make([]models.RosterMember, 0, len(members))
	for _, m := range members {
		if m.ParticipantID == uuid.Nil || seen[m.ParticipantID] {
			continue
		}
		seen[m.ParticipantID] = true
		out = append(out, m)
	}
	return out, nil
}
