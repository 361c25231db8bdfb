package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

func recv(t *testing.T, ch <-chan int64) int64 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
		return 0
	}
}

func TestBroker_CoalescesForSlowListener(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	id := uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	got := make(chan int64, 8)
	first := true
	b.Subscribe(id, func(s *models.DraftSession) {
		got <- s.Version
		if first {
			first = false
			close(entered)
			<-release
		}
	})

	b.Publish(&models.DraftSession{ID: id, Version: 1})
	<-entered
	b.Publish(&models.DraftSession{ID: id, Version: 2})
	b.Publish(&models.DraftSession{ID: id, Version: 3})
	close(release)

	if v := recv(t, got); v != 1 {
		t.Fatalf("first delivery = %d, want 1", v)
	}
	if v := recv(t, got); v != 3 {
		t.Fatalf("second delivery = %d, want 3", v)
	}
}

func TestBroker_DropsStaleSnapshots(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	id := uuid.New()

	got := make(chan int64, 8)
	b.Subscribe(id, func(s *models.DraftSession) { got <- s.Version })

	b.Publish(&models.DraftSession{ID: id, Version: 5})
	if v := recv(t, got); v != 5 {
		t.Fatalf("got %d, want 5", v)
	}
	b.Publish(&models.DraftSession{ID: id, Version: 4})
	b.Publish(&models.DraftSession{ID: id, Version: 6})
	if v := recv(t, got); v != 6 {
		t.Fatalf("got %d, want 6", v)
	}
}

func TestBroker_RoutesBySession(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	a, other := uuid.New(), uuid.New()

	one := make(chan int64, 8)
	all := make(chan int64, 8)
	b.Subscribe(a, func(s *models.DraftSession) { one <- s.Version })
	b.SubscribeAll(func(s *models.DraftSession) { all <- s.Version })

	b.Publish(&models.DraftSession{ID: other, Version: 7})
	b.Publish(&models.DraftSession{ID: a, Version: 8})

	if v := recv(t, one); v != 8 {
		t.Fatalf("session listener got %d, want 8", v)
	}
	seen := map[int64]bool{recv(t, all): true, recv(t, all): true}
	if !seen[7] || !seen[8] {
		t.Fatalf("all listener saw %v, want 7 and 8", seen)
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	id := uuid.New()

	got := make(chan int64, 8)
	unsubscribe := b.Subscribe(id, func(s *models.DraftSession) { got <- s.Version })
	unsubscribe()
	unsubscribe()

	b.Publish(&models.DraftSession{ID: id, Version: 1})
	select {
	case v := <-got:
		t.Fatalf("delivered %d after unsubscribe", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_ForgetsCompletedSessions(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	got := make(chan int64, 8)
	sub := b.subscribe(uuid.Nil, func(s *models.DraftSession) { got <- s.Version })

	live, done := uuid.New(), uuid.New()
	b.Publish(&models.DraftSession{ID: live, Version: 1, Status: models.SessionStatusLive})
	if v := recv(t, got); v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	b.Publish(&models.DraftSession{ID: done, Version: 1, Status: models.SessionStatusLive})
	if v := recv(t, got); v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	b.Publish(&models.DraftSession{ID: done, Version: 2, Status: models.SessionStatusCompleted})
	if v := recv(t, got); v != 2 {
		t.Fatalf("got %d, want 2", v)
	}

	sub.mu.Lock()
	_, liveTracked := sub.delivered[live]
	_, doneTracked := sub.delivered[done]
	sub.mu.Unlock()
	if !liveTracked || doneTracked {
		t.Errorf("tracked live=%v completed=%v, want only the live session", liveTracked, doneTracked)
	}
}
