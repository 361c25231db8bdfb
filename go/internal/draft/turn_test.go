package draft

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

func newIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestCurrentActor_SnakeSymmetry(t *testing.T) {
	p := newIDs(4)

	want := []uuid.UUID{
		p[0], p[1], p[2], p[3],
		p[3], p[2], p[1], p[0],
		p[0], p[1], p[2], p[3],
		p[3], p[2], p[1], p[0],
	}
	for idx, w := range want {
		got, err := CurrentActor(p, idx, 4)
		if err != nil {
			t.Fatalf("pick %d: unexpected error: %v", idx, err)
		}
		if got != w {
			t.Errorf("pick %d: got %s, want %s", idx, got, w)
		}
	}

	if got, _ := CurrentActor(p, 4, 4); got != p[3] {
		t.Errorf("pick 4 should belong to the last drafter of round one")
	}
}

func TestCurrentActor_EdgeCases(t *testing.T) {
	p := newIDs(3)
	corrupted := []uuid.UUID{p[0], uuid.Nil, p[2]}

	tests := []struct {
		name      string
		order     []uuid.UUID
		pickIndex int
		maxItems  int
		wantErr   error
	}{
		{"empty order", nil, 0, 4, ErrEmptyDraft},
		{"last pick", p, 11, 4, nil},
		{"complete", p, 12, 4, ErrDraftComplete},
		{"past complete", p, 40, 4, ErrDraftComplete},
		{"negative index", p, -1, 4, ErrInvalidState},
		{"nil slot", corrupted, 1, 4, ErrInvalidState},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CurrentActor(tc.order, tc.pickIndex, tc.maxItems)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCurrentActor_Deterministic(t *testing.T) {
	for n := 1; n <= 6; n++ {
		order := newIDs(n)
		for maxItems := 1; maxItems <= 4; maxItems++ {
			for idx := 0; idx < n*maxItems; idx++ {
				a, errA := CurrentActor(order, idx, maxItems)
				b, errB := CurrentActor(order, idx, maxItems)
				if errA != nil || errB != nil {
					t.Fatalf("n=%d max=%d idx=%d: unexpected errors %v %v", n, maxItems, idx, errA, errB)
				}
				if a != b {
					t.Fatalf("n=%d max=%d idx=%d: not deterministic", n, maxItems, idx)
				}
			}
		}
	}
}

func TestSlotFor(t *testing.T) {
	tests := []struct {
		pickIndex int
		want      Slot
	}{
		{0, Slot{Round: 1, Position: 1, Overall: 1}},
		{3, Slot{Round: 1, Position: 4, Overall: 4}},
		{4, Slot{Round: 2, Position: 4, Overall: 5}},
		{7, Slot{Round: 2, Position: 1, Overall: 8}},
		{8, Slot{Round: 3, Position: 1, Overall: 9}},
	}
	for _, tc := range tests {
		if got := SlotFor(tc.pickIndex, 4); got != tc.want {
			t.Errorf("SlotFor(%d, 4) = %+v, want %+v", tc.pickIndex, got, tc.want)
		}
	}
}

func TestTurn_MismatchedOrder(t *testing.T) {
	p := newIDs(3)
	s := &models.DraftSession{
		Participants: p,
		DraftOrder:   p[:2],
		MaxItems:     models.DefaultMaxItems,
	}
	if _, err := Turn(s); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}

	s.Participants = nil
	if _, err := Turn(s); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("got %v, want ErrEmptyDraft", err)
	}
}
