package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

func TestMemoryStore_MissesLeaveNoEntry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := uuid.New()
		if _, err := store.Get(ctx, id); !errors.Is(err, draft.ErrSessionNotFound) {
			t.Fatalf("Get: got %v, want ErrSessionNotFound", err)
		}
		_, err := store.Update(ctx, id, func(*models.DraftSession) ([]events.Event, error) {
			t.Fatal("mutate called for a missing session")
			return nil, nil
		})
		if !errors.Is(err, draft.ErrSessionNotFound) {
			t.Fatalf("Update: got %v, want ErrSessionNotFound", err)
		}
	}

	store.mu.Lock()
	n := len(store.entries)
	store.mu.Unlock()
	if n != 0 {
		t.Errorf("entries = %d after misses, want 0", n)
	}
}
