package initializer

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

var testNow = time.Date(2026, 6, 11, 18, 0, 0, 0, time.UTC)

type fakeRoster struct {
	members map[uuid.UUID][]models.RosterMember
}

func (f *fakeRoster) ListDivisionMembers(ctx context.Context, divisionID uuid.UUID) ([]models.RosterMember, error) {
	return f.members[divisionID], nil
}

type fakeLegacy struct {
	drafts   map[uuid.UUID]*models.LegacyDraft
	migrated map[uuid.UUID]bool
	reads    int
}

func (f *fakeLegacy) GetLegacyDraft(ctx context.Context, divisionID uuid.UUID) (*models.LegacyDraft, error) {
	f.reads++
	if f.migrated[divisionID] {
		return nil, nil
	}
	return f.drafts[divisionID], nil
}

func (f *fakeLegacy) MarkLegacyMigrated(ctx context.Context, divisionID uuid.UUID) error {
	f.migrated[divisionID] = true
	return nil
}

var (
	_ RosterSource = (*fakeRoster)(nil)
	_ LegacySource = (*fakeLegacy)(nil)
)

type harness struct {
	app    *App
	store  *session.MemoryStore
	roster *fakeRoster
	legacy *fakeLegacy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  session.NewMemoryStore(),
		roster: &fakeRoster{members: make(map[uuid.UUID][]models.RosterMember)},
		legacy: &fakeLegacy{drafts: make(map[uuid.UUID]*models.LegacyDraft), migrated: make(map[uuid.UUID]bool)},
	}
	h.app = NewApp(h.store, h.roster, h.legacy, catalog.Default(), clockwork.NewFakeClockAt(testNow),
		rand.New(rand.NewSource(7)), Defaults{PerTurnSeconds: 90, ExpiryPolicy: models.ExpiryPolicyRandom})
	return h
}

func roster(n int, bots ...int) []models.RosterMember {
	out := make([]models.RosterMember, n)
	for i := range out {
		out[i] = models.RosterMember{ParticipantID: uuid.New(), JoinedAt: testNow.Add(time.Duration(i) * time.Minute)}
	}
	for _, b := range bots {
		out[b].IsBot = true
	}
	return out
}

func ids(members []models.RosterMember) []uuid.UUID {
	out := make([]uuid.UUID, len(members))
	for i, m := range members {
		out[i] = m.ParticipantID
	}
	return out
}

func TestInitialize_CreatesMissingSession(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	members := roster(4, 2)

	s, err := h.app.Initialize(context.Background(), id, members, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != models.SessionStatusScheduled || s.Version != 1 {
		t.Errorf("status %s, version %d", s.Status, s.Version)
	}
	if diff := cmp.Diff(ids(members), s.DraftOrder); diff != "" {
		t.Errorf("draft order (-want +got):\n%s", diff)
	}
	if !slices.Equal(s.Simulated, []uuid.UUID{members[2].ParticipantID}) {
		t.Errorf("simulated = %v", s.Simulated)
	}
	if s.PerTurnSeconds != 90 || s.ExpiryPolicy != models.ExpiryPolicyRandom || s.MaxItems != models.DefaultMaxItems {
		t.Errorf("defaults not applied: %d/%s/%d", s.PerTurnSeconds, s.ExpiryPolicy, s.MaxItems)
	}
	if got := h.store.Events(id); len(got) != 1 || got[0].EventType != events.TypeDraftInitialized {
		t.Errorf("events = %v", got)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	members := roster(5)

	first, err := h.app.Initialize(ctx, id, members, Options{ShuffleOrder: true})
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.app.Initialize(ctx, id, members, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-run changed the session (-first +second):\n%s", diff)
	}
	if n := len(h.store.Events(id)); n != 1 {
		t.Errorf("got %d events, want 1", n)
	}
}

func TestInitialize_ShuffleIsPermutation(t *testing.T) {
	h := newHarness(t)
	members := roster(8)
	s, err := h.app.Initialize(context.Background(), uuid.New(), members, Options{ShuffleOrder: true})
	if err != nil {
		t.Fatal(err)
	}
	got := slices.Clone(s.DraftOrder)
	want := ids(members)
	less := func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) }
	slices.SortFunc(got, less)
	slices.SortFunc(want, less)
	if !slices.Equal(got, want) {
		t.Fatalf("shuffled order is not a permutation of the roster")
	}
}

func TestInitialize_PreservesOrderAndAppends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	members := roster(4)

	first, err := h.app.Initialize(ctx, id, members, Options{ShuffleOrder: true})
	if err != nil {
		t.Fatal(err)
	}

	// members[1] leaves, a newcomer joins.
	newcomer := roster(1)[0]
	next := []models.RosterMember{members[0], members[2], members[3], newcomer}
	s, err := h.app.Initialize(ctx, id, next, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var want []uuid.UUID
	for _, p := range first.DraftOrder {
		if p != members[1].ParticipantID {
			want = append(want, p)
		}
	}
	want = append(want, newcomer.ParticipantID)
	if diff := cmp.Diff(want, s.DraftOrder); diff != "" {
		t.Errorf("draft order (-want +got):\n%s", diff)
	}
}

func TestInitialize_KeepsPicksUnlessReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	members := roster(2)

	if _, err := h.app.Initialize(ctx, id, members, Options{}); err != nil {
		t.Fatal(err)
	}
	_, err := h.store.Update(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		s.Status = models.SessionStatusLive
		return nil, draft.ApplyPick(s, draft.PickInput{ParticipantID: members[0].ParticipantID, ItemCode: "ARG", Now: testNow})
	})
	if err != nil {
		t.Fatal(err)
	}

	kept, err := h.app.Initialize(ctx, id, append(members, roster(1)...), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if kept.PickIndex != 1 || len(kept.RecentPicks) != 1 || kept.Status != models.SessionStatusLive {
		t.Errorf("progress lost: index %d, status %s", kept.PickIndex, kept.Status)
	}

	reset, err := h.app.Initialize(ctx, id, members, Options{ResetPicks: true})
	if err != nil {
		t.Fatal(err)
	}
	if reset.PickIndex != 0 || len(reset.RecentPicks) != 0 {
		t.Errorf("reset kept progress: index %d", reset.PickIndex)
	}
	if len(reset.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(reset.Participants))
	}
}

func TestInitialize_ShrinkBelowProgressNeedsReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	members := roster(3)
	if _, err := h.app.Initialize(ctx, id, members, Options{}); err != nil {
		t.Fatal(err)
	}

	codes := catalog.Default().Items()
	_, err := h.store.Update(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		s.Status = models.SessionStatusLive
		for i := 0; i < 10; i++ {
			actor, err := draft.Turn(s)
			if err != nil {
				return nil, err
			}
			if err := draft.ApplyPick(s, draft.PickInput{ParticipantID: actor, ItemCode: codes[i].Code, Now: testNow}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.app.Initialize(ctx, id, members[:2], Options{})
	if !errors.Is(err, draft.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
	if _, err := h.app.Initialize(ctx, id, members[:2], Options{ResetPicks: true}); err != nil {
		t.Fatalf("reset: %v", err)
	}
}

func TestInitialize_EmptyRoster(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	_, err := h.app.Initialize(context.Background(), id, nil, Options{})
	if !errors.Is(err, draft.ErrEmptyRoster) {
		t.Fatalf("got %v, want ErrEmptyRoster", err)
	}
	if _, err := h.store.Get(context.Background(), id); !errors.Is(err, draft.ErrSessionNotFound) {
		t.Errorf("empty roster created a session: %v", err)
	}
}

func TestInitialize_MigratesLegacyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	members := roster(2)
	a, b := members[0].ParticipantID, members[1].ParticipantID

	h.legacy.drafts[id] = &models.LegacyDraft{
		Order:  []string{b.String(), a.String()},
		Status: "live",
		Picks: []models.LegacyDraftPick{
			{UID: b.String(), Country: "bra", At: testNow.UnixMilli()},
			{UID: a.String(), Country: "ger", At: testNow.UnixMilli()},
			{UID: a.String(), Country: "BRA"},
			{UID: "not-a-uuid", Country: "ARG"},
		},
		TimerSecs: 30,
		AutoPick:  "best",
	}

	s, err := h.app.Initialize(ctx, id, members, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uuid.UUID{b, a}, s.DraftOrder); diff != "" {
		t.Errorf("draft order (-want +got):\n%s", diff)
	}
	if s.PickIndex != 2 || s.Status != models.SessionStatusLive {
		t.Errorf("index %d, status %s; want 2, LIVE", s.PickIndex, s.Status)
	}
	if s.PerTurnSeconds != 30 || s.ExpiryPolicy != models.ExpiryPolicyBest {
		t.Errorf("settings %d/%s", s.PerTurnSeconds, s.ExpiryPolicy)
	}
	if err := draft.Validate(s); err != nil {
		t.Errorf("migrated session invalid: %v", err)
	}
	if !h.legacy.migrated[id] {
		t.Error("legacy copy not marked migrated")
	}

	reads := h.legacy.reads
	if _, err := h.app.Initialize(ctx, id, members, Options{}); err != nil {
		t.Fatal(err)
	}
	if h.legacy.reads != reads {
		t.Error("legacy copy read again after migration")
	}
}

func TestHandleMembershipEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	members := roster(3)
	h.roster.members[id] = members

	err := h.app.HandleMembershipEvent(ctx, models.MembershipEvent{DivisionID: id, ParticipantID: members[2].ParticipantID, Action: models.MembershipJoined})
	if err != nil {
		t.Fatal(err)
	}
	s, err := h.store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(s.Participants))
	}

	h.roster.members[id] = nil
	err = h.app.HandleMembershipEvent(ctx, models.MembershipEvent{DivisionID: id, ParticipantID: members[0].ParticipantID, Action: models.MembershipLeft})
	if err != nil {
		t.Fatalf("empty roster should be logged, got %v", err)
	}
	after, _ := h.store.Get(ctx, id)
	if after.Version != s.Version {
		t.Errorf("empty roster touched the session")
	}
}
