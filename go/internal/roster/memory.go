package roster

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/models"
)

// MemoryRepository keeps division membership in process, built up from the
// membership events it is given. It backs the memory store mode.
type MemoryRepository struct {
	mu        sync.RWMutex
	divisions map[uuid.UUID]map[uuid.UUID]models.RosterMember
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{divisions: make(map[uuid.UUID]map[uuid.UUID]models.RosterMember)}
}

// Apply records a join or a leave. Joining twice keeps the first join time.
func (m *MemoryRepository) Apply(ev models.MembershipEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.divisions[ev.DivisionID]
	switch ev.Action {
	case models.MembershipJoined:
		if members == nil {
			members = make(map[uuid.UUID]models.RosterMember)
			m.divisions[ev.DivisionID] = members
		}
		if _, ok := members[ev.ParticipantID]; !ok {
			members[ev.ParticipantID] = models.RosterMember{
				DivisionID:    ev.DivisionID,
				ParticipantID: ev.ParticipantID,
				JoinedAt:      ev.OccurredAt,
			}
		}
	case models.MembershipLeft:
		delete(members, ev.ParticipantID)
	}
}

// Put adds or replaces a member, e.g. a simulated one.
func (m *MemoryRepository) Put(member models.RosterMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.divisions[member.DivisionID]
	if members == nil {
		members = make(map[uuid.UUID]models.RosterMember)
		m.divisions[member.DivisionID] = members
	}
	members[member.ParticipantID] = member
}

// ListDivisionMembers returns members in join order, like the Postgres
// repository.
func (m *MemoryRepository) ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RosterMember, 0, len(m.divisions[divisionID]))
	for _, member := range m.divisions[divisionID] {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ParticipantID.String() < out[j].ParticipantID.String()
	})
	return out, nil
}
