package orchestrator

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

var (
	// ErrManualPolicy means the turn is left for a person to resolve.
	ErrManualPolicy = errors.New("expiry policy is manual")
	// ErrNoItemsAvailable means every catalog item is already held.
	ErrNoItemsAvailable = errors.New("no items available")
)

// ItemSource lists unheld catalog items.
type ItemSource interface {
	Available(held map[string]bool) []catalog.Item
	Ranked(held map[string]bool) []catalog.Item
}

// AutoPickStrategy picks one item among those not yet held.
type AutoPickStrategy interface {
	Select(items ItemSource, held map[string]bool) (catalog.Item, error)
}

// RandomStrategy picks uniformly among available items.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy. A nil rng is seeded from the
// current time.
func NewRandomStrategy(rng *rand.Rand) *RandomStrategy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomStrategy{rng: rng}
}

// Select implements AutoPickStrategy.
func (s *RandomStrategy) Select(items ItemSource, held map[string]bool) (catalog.Item, error) {
	available := items.Available(held)
	if len(available) == 0 {
		return catalog.Item{}, ErrNoItemsAvailable
	}
	s.mu.Lock()
	i := s.rng.Intn(len(available))
	s.mu.Unlock()
	return available[i], nil
}

// BestStrategy picks the highest ranked available item.
type BestStrategy struct{}

// Select implements AutoPickStrategy.
func (BestStrategy) Select(items ItemSource, held map[string]bool) (catalog.Item, error) {
	ranked := items.Ranked(held)
	if len(ranked) == 0 {
		return catalog.Item{}, ErrNoItemsAvailable
	}
	return ranked[0], nil
}

// Resolver chooses an item for a participant who is not picking for
// themselves.
type Resolver struct {
	items  ItemSource
	random AutoPickStrategy
	best   AutoPickStrategy
}

// NewResolver creates a Resolver over items.
func NewResolver(items ItemSource, random AutoPickStrategy) *Resolver {
	return &Resolver{items: items, random: random, best: BestStrategy{}}
}

// Choose returns the item to submit for participant under the session's
// expiry policy. Simulated participants always get a pick; under the manual
// policy they fall back to random.
func (r *Resolver) Choose(s *models.DraftSession, participant uuid.UUID) (catalog.Item, error) {
	held := draft.HeldItems(s)
	policy := s.ExpiryPolicy
	if policy == "" {
		policy = models.ExpiryPolicyManual
	}
	if policy == models.ExpiryPolicyManual && draft.IsSimulated(s, participant) {
		policy = models.ExpiryPolicyRandom
	}

	switch policy {
	case models.ExpiryPolicyRandom:
		return r.random.Select(r.items, held)
	case models.ExpiryPolicyBest:
		return r.best.Select(r.items, held)
	case models.ExpiryPolicyManual:
		return catalog.Item{}, ErrManualPolicy
	default:
		return catalog.Item{}, fmt.Errorf("%w: unknown expiry policy %q", draft.ErrInvalidState, s.ExpiryPolicy)
	}
}
