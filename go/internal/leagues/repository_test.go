package leagues

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

func TestDecodeLegacyDraft(t *testing.T) {
	division, league := uuid.New(), uuid.New()
	member := uuid.NewString()
	body := json.RawMessage(`{"order":["` + member + `"],"members":["` + member + `"],"currentPick":1,
		"picks":[{"uid":"` + member + `","country":"arg","at":1718128800000}],"status":"live","timer":45,"autoPick":"best"}`)

	t.Run("decodes", func(t *testing.T) {
		got, err := decodeLegacyDraft(division, league, pqtype.NullRawMessage{RawMessage: body, Valid: true}, sql.NullTime{})
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got == nil {
			t.Fatal("expected a legacy draft")
		}
		if got.DivisionID != division || got.LeagueID != league {
			t.Fatalf("ids not attached: %+v", got)
		}
		if got.CurrentPick != 1 || got.TimerSecs != 45 || got.AutoPick != "best" || len(got.Picks) != 1 || got.Picks[0].Country != "arg" {
			t.Fatalf("unexpected decode: %+v", got)
		}
	})

	tests := []struct {
		name       string
		raw        pqtype.NullRawMessage
		migratedAt sql.NullTime
	}{
		{"absent", pqtype.NullRawMessage{}, sql.NullTime{}},
		{"json null", pqtype.NullRawMessage{RawMessage: json.RawMessage(`null`), Valid: true}, sql.NullTime{}},
		{"already migrated", pqtype.NullRawMessage{RawMessage: body, Valid: true}, sql.NullTime{Time: time.Now(), Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeLegacyDraft(division, league, tt.raw, tt.migratedAt)
			if err != nil || got != nil {
				t.Fatalf("got (%+v, %v), want (nil, nil)", got, err)
			}
		})
	}

	t.Run("corrupt", func(t *testing.T) {
		if _, err := decodeLegacyDraft(division, league, pqtype.NullRawMessage{RawMessage: json.RawMessage(`{"picks":7}`), Valid: true}, sql.NullTime{}); err == nil {
			t.Fatal("expected a decode error")
		}
	})
}
