package draftrpc

import (
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

func liveSession(n, pickIndex int) *models.DraftSession {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return &models.DraftSession{
		ID:           uuid.New(),
		Participants: ids,
		DraftOrder:   append([]uuid.UUID(nil), ids...),
		PickIndex:    pickIndex,
		Status:       models.SessionStatusLive,
		MaxItems:     models.DefaultMaxItems,
	}
}

func TestNewDraftState(t *testing.T) {
	s := liveSession(3, 0)
	st := NewDraftState(s)
	if st.CurrentActor == nil || *st.CurrentActor != s.DraftOrder[0] || st.Complete || st.Problem != "" {
		t.Fatalf("running draft state = %+v", st)
	}

	empty := liveSession(0, 0)
	if st := NewDraftState(empty); st.Problem != ProblemEmptyDraft || st.CurrentActor != nil {
		t.Fatalf("empty draft state = %+v", st)
	}

	broken := liveSession(3, 0)
	broken.DraftOrder = broken.DraftOrder[:2]
	if st := NewDraftState(broken); st.Problem != ProblemInvalidState {
		t.Fatalf("broken draft state = %+v", st)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	idx := 4
	in := &ApplyPickRequest{DraftID: uuid.New(), ParticipantID: uuid.New(), ItemCode: "ARG", ExpectedPickIndex: &idx}
	data, err := jsonCodec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out ApplyPickRequest
	if err := (jsonCodec{}).Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.DraftID != in.DraftID || out.ExpectedPickIndex == nil || *out.ExpectedPickIndex != 4 {
		t.Fatalf("round trip = %+v", out)
	}
	if err := (jsonCodec{}).Unmarshal(nil, &out); err != nil {
		t.Fatalf("empty body: %v", err)
	}
}

func TestFromConnectErrorLeavesOtherErrorsAlone(t *testing.T) {
	plain := errors.New("dial tcp: connection refused")
	if got := FromConnectError(plain); got != plain {
		t.Fatalf("plain error changed: %v", got)
	}
	untagged := connect.NewError(connect.CodeUnavailable, plain)
	if got := FromConnectError(untagged); got != error(untagged) {
		t.Fatalf("untagged error changed: %v", got)
	}
	tagged := ToConnectError(draft.ErrCapacityExceeded)
	if !errors.Is(FromConnectError(tagged), draft.ErrCapacityExceeded) {
		t.Fatal("tagged error not restored")
	}
}
