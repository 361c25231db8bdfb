package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

var testStart = time.Date(2026, 6, 11, 18, 0, 0, 0, time.UTC)

type fixture struct {
	app   *App
	store *MemoryStore
	cat   *catalog.Catalog
	id    uuid.UUID
	ids   []uuid.UUID
}

func newFixture(t *testing.T, n int, status models.SessionStatus) *fixture {
	t.Helper()
	store := NewMemoryStore()
	broker := NewBroker()
	t.Cleanup(broker.Close)
	cat := catalog.Default()
	app := NewApp(store, cat, broker, clockwork.NewFakeClockAt(testStart))

	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	id := uuid.New()
	_, err := store.Upsert(context.Background(), id, func(existing *models.DraftSession) (*models.DraftSession, []events.Event, error) {
		return &models.DraftSession{
			Participants:   ids,
			DraftOrder:     append([]uuid.UUID(nil), ids...),
			Status:         status,
			PerTurnSeconds: 60,
			ExpiryPolicy:   models.ExpiryPolicyRandom,
			MaxItems:       models.DefaultMaxItems,
			SchemaVersion:  models.CurrentSchemaVersion,
		}, nil, nil
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return &fixture{app: app, store: store, cat: cat, id: id, ids: ids}
}

func (f *fixture) code(i int) string {
	return f.cat.Items()[i].Code
}

func TestApplyPick_CompletesDraft(t *testing.T) {
	f := newFixture(t, 4, models.SessionStatusLive)
	ctx := context.Background()

	for i := 0; i < 16; i++ {
		s, err := f.app.GetState(ctx, f.id)
		if err != nil {
			t.Fatal(err)
		}
		actor, err := draft.Turn(s)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		idx := s.PickIndex
		if _, err := f.app.ApplyPick(ctx, ApplyPickRequest{
			SessionID:         f.id,
			ParticipantID:     actor,
			ItemCode:          f.code(i),
			ExpectedPickIndex: &idx,
		}); err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
	}

	s, err := f.app.GetState(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", s.Status)
	}
	if s.Version != 17 {
		t.Errorf("version = %d, want 17", s.Version)
	}
	if err := draft.Validate(s); err != nil {
		t.Errorf("invariants: %v", err)
	}

	evts := f.store.Events(f.id)
	if len(evts) != 17 {
		t.Fatalf("got %d events, want 16 picks and a completion", len(evts))
	}
	if got := evts[len(evts)-1].EventType; got != events.TypeDraftCompleted {
		t.Errorf("last event = %s, want %s", got, events.TypeDraftCompleted)
	}
}

func TestApplyPick_Rejections(t *testing.T) {
	f := newFixture(t, 4, models.SessionStatusLive)
	ctx := context.Background()
	first := f.ids[0]
	if _, err := f.app.ApplyPick(ctx, ApplyPickRequest{SessionID: f.id, ParticipantID: first, ItemCode: "arg"}); err != nil {
		t.Fatalf("first pick: %v", err)
	}
	stale := 0

	tests := []struct {
		name string
		req  ApplyPickRequest
		want error
	}{
		{"taken item", ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[1], ItemCode: "ARG"}, draft.ErrConflict},
		{"wrong turn", ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[2], ItemCode: "FRA"}, draft.ErrWrongTurn},
		{"stale expected index", ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[1], ItemCode: "FRA", ExpectedPickIndex: &stale}, draft.ErrConflict},
		{"unknown item", ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[1], ItemCode: "ATLANTIS"}, draft.ErrUnknownItem},
		{"unknown participant", ApplyPickRequest{SessionID: f.id, ParticipantID: uuid.New(), ItemCode: "FRA"}, draft.ErrUnknownParticipant},
		{"missing session", ApplyPickRequest{SessionID: uuid.New(), ParticipantID: f.ids[1], ItemCode: "FRA"}, draft.ErrSessionNotFound},
		{"override source", ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[1], ItemCode: "FRA", Source: models.PickSourceForced}, draft.ErrInvalidRequest},
		{"empty code", ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[1], ItemCode: "  "}, draft.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.app.ApplyPick(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	s, _ := f.app.GetState(ctx, f.id)
	if s.PickIndex != 1 || s.Version != 2 {
		t.Errorf("rejections changed state: pick index %d, version %d", s.PickIndex, s.Version)
	}
}

func TestApplyPick_NotStarted(t *testing.T) {
	f := newFixture(t, 2, models.SessionStatusScheduled)
	_, err := f.app.ApplyPick(context.Background(), ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[0], ItemCode: "ARG"})
	if !errors.Is(err, draft.ErrDraftNotStarted) {
		t.Fatalf("got %v, want ErrDraftNotStarted", err)
	}
}

func TestApplyPick_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t, 4, models.SessionStatusLive)
	ctx := context.Background()
	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.app.ApplyPick(ctx, ApplyPickRequest{
				SessionID:     f.id,
				ParticipantID: f.ids[0],
				ItemCode:      f.code(i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case draft.IsContention(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || rejected != workers-1 {
		t.Errorf("successes = %d, rejected = %d; want 1 and %d", successes, rejected, workers-1)
	}
	s, _ := f.app.GetState(ctx, f.id)
	if s.PickIndex != 1 {
		t.Errorf("pick index = %d, want 1", s.PickIndex)
	}
}

func TestApplyPick_SameItemRace(t *testing.T) {
	f := newFixture(t, 2, models.SessionStatusLive)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, len(f.ids))
	for i, p := range f.ids {
		wg.Add(1)
		go func(i int, p uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.app.ApplyPick(ctx, ApplyPickRequest{SessionID: f.id, ParticipantID: p, ItemCode: "BRA"})
		}(i, p)
	}
	wg.Wait()

	if errs[0] != nil {
		t.Fatalf("participant on the clock failed: %v", errs[0])
	}
	if !draft.IsContention(errs[1]) {
		t.Fatalf("second participant got %v, want contention", errs[1])
	}
}

func TestStart(t *testing.T) {
	f := newFixture(t, 3, models.SessionStatusScheduled)
	ctx := context.Background()

	s, err := f.app.Start(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != models.SessionStatusLive || s.StartedAt == nil {
		t.Fatalf("status = %s, started at %v", s.Status, s.StartedAt)
	}

	again, err := f.app.Start(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	if again.Version != s.Version {
		t.Errorf("second start wrote version %d, want %d", again.Version, s.Version)
	}
	if n := len(f.store.Events(f.id)); n != 1 {
		t.Errorf("got %d events, want 1", n)
	}
}

func TestStart_EmptyDraft(t *testing.T) {
	f := newFixture(t, 0, models.SessionStatusScheduled)
	if _, err := f.app.Start(context.Background(), f.id); !errors.Is(err, draft.ErrEmptyDraft) {
		t.Fatalf("got %v, want ErrEmptyDraft", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t, 2, models.SessionStatusLive)
	ctx := context.Background()
	secs := 0
	best := models.ExpiryPolicyBest

	s, err := f.app.UpdateSettings(ctx, UpdateSettingsRequest{SessionID: f.id, PerTurnSeconds: &secs, ExpiryPolicy: &best})
	if err != nil {
		t.Fatal(err)
	}
	if s.PerTurnSeconds != 0 || s.ExpiryPolicy != models.ExpiryPolicyBest {
		t.Errorf("settings = %d/%s", s.PerTurnSeconds, s.ExpiryPolicy)
	}

	neg := -5
	if _, err := f.app.UpdateSettings(ctx, UpdateSettingsRequest{SessionID: f.id, PerTurnSeconds: &neg}); !errors.Is(err, draft.ErrInvalidRequest) {
		t.Errorf("negative seconds: got %v", err)
	}
	bogus := models.ExpiryPolicy("SOMETIMES")
	if _, err := f.app.UpdateSettings(ctx, UpdateSettingsRequest{SessionID: f.id, ExpiryPolicy: &bogus}); !errors.Is(err, draft.ErrInvalidRequest) {
		t.Errorf("bogus policy: got %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, 2, models.SessionStatusLive)
	ctx := context.Background()

	got := make(chan *models.DraftSession, 16)
	unsubscribe, err := f.app.Subscribe(ctx, f.id, func(s *models.DraftSession) { got <- s })
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()

	if _, err := f.app.ApplyPick(ctx, ApplyPickRequest{SessionID: f.id, ParticipantID: f.ids[0], ItemCode: "ESP"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-got:
			if s.PickIndex == 1 {
				if s.RecentPicks[0].ItemCode != "ESP" {
					t.Errorf("snapshot item = %s", s.RecentPicks[0].ItemCode)
				}
				return
			}
		case <-deadline:
			t.Fatal("no snapshot after the pick")
		}
	}
}

func TestSubscribe_UnknownSession(t *testing.T) {
	f := newFixture(t, 2, models.SessionStatusLive)
	_, err := f.app.Subscribe(context.Background(), uuid.New(), func(*models.DraftSession) {})
	if !errors.Is(err, draft.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestDescribe(t *testing.T) {
	f := newFixture(t, 3, models.SessionStatusLive)
	s, _ := f.app.GetState(context.Background(), f.id)

	snap := Describe(s)
	if snap.TurnErr != nil || snap.CurrentActor != f.ids[0] {
		t.Fatalf("actor = %s, err = %v", snap.CurrentActor, snap.TurnErr)
	}
	if len(snap.Holdings) != 3 {
		t.Errorf("holdings for %d participants, want 3", len(snap.Holdings))
	}
}
