package override

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/initializer"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

var testNow = time.Date(2026, 6, 11, 18, 0, 0, 0, time.UTC)

type staticRoster map[uuid.UUID][]models.RosterMember

func (r staticRoster) ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error) {
	return r[divisionID], nil
}

type env struct {
	overrides *App
	sessions  *session.App
	store     *session.MemoryStore
	roster    staticRoster
	id        uuid.UUID
	ids       []uuid.UUID
}

func newEnv(t *testing.T, n int, start bool) *env {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	cat := catalog.Default()
	store := session.NewMemoryStore()
	sessions := session.NewApp(store, cat, nil, clock)
	roster := staticRoster{}
	init := initializer.NewApp(sessions, roster, nil, cat, clock, rand.New(rand.NewSource(1)), initializer.Defaults{})

	id := uuid.New()
	members := make([]models.RosterMember, n)
	ids := make([]uuid.UUID, n)
	for i := range members {
		ids[i] = uuid.New()
		members[i] = models.RosterMember{DivisionID: id, ParticipantID: ids[i]}
	}
	roster[id] = members
	if _, err := init.Initialize(ctx, id, members, initializer.Options{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if start {
		if _, err := sessions.Start(ctx, id); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	return &env{
		overrides: NewApp(sessions, init, cat, clock),
		sessions:  sessions,
		store:     store,
		roster:    roster,
		id:        id,
		ids:       ids,
	}
}

func TestForceDraft_BypassesTurnOnly(t *testing.T) {
	e := newEnv(t, 3, true)
	ctx := context.Background()

	s, err := e.overrides.ForceDraft(ctx, e.id, e.ids[2], "fra")
	if err != nil {
		t.Fatal(err)
	}
	if s.PickIndex != 1 || s.RecentPicks[0].ParticipantID != e.ids[2] || s.RecentPicks[0].Source != models.PickSourceForced {
		t.Fatalf("forced pick not recorded: %+v", s.RecentPicks)
	}

	tests := []struct {
		name        string
		participant uuid.UUID
		item        string
		want        error
	}{
		{"taken", e.ids[1], "FRA", draft.ErrConflict},
		{"unknown item", e.ids[1], "XXX", draft.ErrUnknownItem},
		{"not a participant", uuid.New(), "ESP", draft.ErrUnknownParticipant},
		{"missing target", uuid.Nil, "ESP", draft.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.overrides.ForceDraft(ctx, e.id, tt.participant, tt.item); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestForceDraft_Capacity(t *testing.T) {
	e := newEnv(t, 2, true)
	ctx := context.Background()
	codes := catalog.Default().Items()

	for i := 0; i < models.DefaultMaxItems; i++ {
		if _, err := e.overrides.ForceDraft(ctx, e.id, e.ids[0], codes[i].Code); err != nil {
			t.Fatalf("force %d: %v", i, err)
		}
	}
	_, err := e.overrides.ForceDraft(ctx, e.id, e.ids[0], codes[10].Code)
	if !errors.Is(err, draft.ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
}

func TestForceDraft_StartsScheduledDraft(t *testing.T) {
	e := newEnv(t, 2, false)
	s, err := e.overrides.ForceDraft(context.Background(), e.id, e.ids[1], "ARG")
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != models.SessionStatusLive || s.StartedAt == nil {
		t.Errorf("status %s, started %v", s.Status, s.StartedAt)
	}
}

func TestManualInsert_DoesNotAdvance(t *testing.T) {
	e := newEnv(t, 2, true)
	ctx := context.Background()

	s, err := e.overrides.ManualInsert(ctx, e.id, e.ids[1], "NED")
	if err != nil {
		t.Fatal(err)
	}
	if s.PickIndex != 0 || len(s.RecentPicks) != 0 {
		t.Fatalf("manual insert advanced the draft: index %d", s.PickIndex)
	}
	if len(s.ManualPicks) != 1 || s.ManualPicks[0].PickIndexAtTime != models.ManualPickIndex {
		t.Fatalf("manual picks = %+v", s.ManualPicks)
	}

	_, err = e.sessions.ApplyPick(ctx, session.ApplyPickRequest{SessionID: e.id, ParticipantID: e.ids[0], ItemCode: "NED"})
	if !errors.Is(err, draft.ErrConflict) {
		t.Fatalf("manually held item: got %v, want ErrConflict", err)
	}
}

func TestUndo_RestoresPrePickState(t *testing.T) {
	e := newEnv(t, 2, true)
	ctx := context.Background()

	before, err := e.sessions.GetState(ctx, e.id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.sessions.ApplyPick(ctx, session.ApplyPickRequest{SessionID: e.id, ParticipantID: e.ids[0], ItemCode: "ITA"}); err != nil {
		t.Fatal(err)
	}
	after, err := e.overrides.Undo(ctx, e.id)
	if err != nil {
		t.Fatal(err)
	}

	ignore := cmpopts.IgnoreFields(models.DraftSession{}, "Version", "UpdatedAt")
	if diff := cmp.Diff(before, after, ignore, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("undo did not restore state (-before +after):\n%s", diff)
	}
	if _, err := e.sessions.ApplyPick(ctx, session.ApplyPickRequest{SessionID: e.id, ParticipantID: e.ids[0], ItemCode: "ITA"}); err != nil {
		t.Errorf("released item not pickable: %v", err)
	}
}

func TestUndo_Empty(t *testing.T) {
	e := newEnv(t, 2, true)
	if _, err := e.overrides.Undo(context.Background(), e.id); !errors.Is(err, draft.ErrNothingToUndo) {
		t.Fatalf("got %v, want ErrNothingToUndo", err)
	}
}

func TestOverride_Dispatch(t *testing.T) {
	e := newEnv(t, 2, true)
	ctx := context.Background()

	e.roster[e.id] = append(e.roster[e.id], models.RosterMember{DivisionID: e.id, ParticipantID: uuid.New()})
	s, err := e.overrides.Override(ctx, OverrideRequest{SessionID: e.id, Action: ActionReinit})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Participants) != 3 {
		t.Errorf("participants = %d, want 3", len(s.Participants))
	}

	if _, err := e.overrides.Override(ctx, OverrideRequest{SessionID: e.id, Action: "teleport"}); !errors.Is(err, draft.ErrInvalidRequest) {
		t.Errorf("unknown action: got %v", err)
	}
	if _, err := e.overrides.Override(ctx, OverrideRequest{SessionID: e.id, Action: ActionUndo}); !errors.Is(err, draft.ErrNothingToUndo) {
		t.Errorf("undo: got %v", err)
	}

	e.roster[e.id] = nil
	if _, err := e.overrides.Override(ctx, OverrideRequest{SessionID: e.id, Action: ActionReinit}); !errors.Is(err, draft.ErrEmptyRoster) {
		t.Errorf("empty roster reinit: got %v", err)
	}
}

func TestForceDraft_RacesApplyPick(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newEnv(t, 2, true)
		ctx := context.Background()

		var wg sync.WaitGroup
		var pickErr, forceErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, pickErr = e.sessions.ApplyPick(ctx, session.ApplyPickRequest{SessionID: e.id, ParticipantID: e.ids[0], ItemCode: "POR"})
		}()
		go func() {
			defer wg.Done()
			_, forceErr = e.overrides.ForceDraft(ctx, e.id, e.ids[1], "POR")
		}()
		wg.Wait()

		if (pickErr == nil) == (forceErr == nil) {
			t.Fatalf("want exactly one success, got pick=%v force=%v", pickErr, forceErr)
		}
		s, _ := e.sessions.GetState(ctx, e.id)
		if s.PickIndex != 1 {
			t.Fatalf("pick index = %d, want 1", s.PickIndex)
		}
	}
}
