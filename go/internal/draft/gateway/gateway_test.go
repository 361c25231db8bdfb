package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft/events"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

var testStart = time.Date(2026, 6, 11, 18, 0, 0, 0, time.UTC)

type rig struct {
	app     *session.App
	clock   *clockwork.FakeClock
	server  *httptest.Server
	service *Service
	draftID uuid.UUID
	ids     []uuid.UUID
	cat     *catalog.Catalog
}

func newRig(t *testing.T) *rig {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	store := session.NewMemoryStore()
	broker := session.NewBroker()
	t.Cleanup(broker.Close)
	cat := catalog.Default()
	app := session.NewApp(store, cat, broker, clock)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	draftID := uuid.New()
	_, err := store.Upsert(context.Background(), draftID, func(*models.DraftSession) (*models.DraftSession, []events.Event, error) {
		return &models.DraftSession{
			Participants:   ids,
			DraftOrder:     append([]uuid.UUID(nil), ids...),
			Status:         models.SessionStatusLive,
			PerTurnSeconds: 60,
			ExpiryPolicy:   models.ExpiryPolicyRandom,
			MaxItems:       models.DefaultMaxItems,
			SchemaVersion:  models.CurrentSchemaVersion,
		}, nil, nil
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	svc := NewService(DefaultConnectionConfig(), app, nil, clock)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &rig{app: app, clock: clock, server: srv, service: svc, draftID: draftID, ids: ids, cat: cat}
}

func (r *rig) dial(t *testing.T, draftID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws/draft?draft_id=" + draftID.String() + "&user_id=tester"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestSnapshotsAndLocalExpiry(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.draftID)

	first := read(t, conn)
	if first.Type != MessageSnapshot || first.State == nil || first.State.Session.PickIndex != 0 {
		t.Fatalf("first message = %+v", first)
	}
	if first.State.CurrentActor == nil || *first.State.CurrentActor != r.ids[0] {
		t.Fatalf("current actor = %v", first.State.CurrentActor)
	}
	if first.Deadline == nil || !first.Deadline.Equal(testStart.Add(60*time.Second)) {
		t.Fatalf("deadline = %v", first.Deadline)
	}

	if _, err := r.app.ApplyPick(context.Background(), session.ApplyPickRequest{
		SessionID:     r.draftID,
		ParticipantID: r.ids[0],
		ItemCode:      r.cat.Items()[0].Code,
	}); err != nil {
		t.Fatalf("ApplyPick: %v", err)
	}

	second := read(t, conn)
	if second.Type != MessageSnapshot || second.State.Session.PickIndex != 1 {
		t.Fatalf("second message = %+v", second)
	}
	if got := second.State.Holdings[r.ids[0]]; len(got) != 1 {
		t.Fatalf("holdings = %v", second.State.Holdings)
	}

	r.clock.Advance(61 * time.Second)

	expired := read(t, conn)
	if expired.Type != MessageTurnExpired || expired.PickIndex == nil || *expired.PickIndex != 1 {
		t.Fatalf("expiry message = %+v", expired)
	}
	if expired.DraftID != r.draftID {
		t.Fatalf("expiry draft = %s", expired.DraftID)
	}
}

func TestStatsTrackConnections(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.draftID)
	read(t, conn)

	resp, err := http.Get(r.server.URL + "/ws/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var stats ConnectionStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalConnections != 1 || stats.DraftConnections[r.draftID.String()] != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for r.service.Stats().TotalConnections != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection not unregistered after client close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnknownDraftClosesConnection(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, uuid.New())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the gateway to close the connection")
	}
}

func TestRejectsBadDraftID(t *testing.T) {
	r := newRig(t)
	for _, query := range []string{"", "?draft_id=nope"} {
		resp, err := http.Get(r.server.URL + "/ws/draft" + query)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q: status = %d, want 400", query, resp.StatusCode)
		}
	}
}
