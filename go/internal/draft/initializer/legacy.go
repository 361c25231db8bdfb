package initializer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/countrydraft/go/internal/catalog"
	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// fromLegacy converts the embedded copy into a normalized session. Legacy
// picks are replayed in their recorded order; picks by non-members, for
// unknown or duplicate items, or over capacity are dropped.
func (a *App) fromLegacy(id uuid.UUID, legacy *models.LegacyDraft, ids []uuid.UUID) *models.DraftSession {
	now := a.clock.Now().UTC()
	s := &models.DraftSession{
		ID:             id,
		LeagueID:       legacy.LeagueID,
		Participants:   ids,
		Status:         models.SessionStatusLive,
		PerTurnSeconds: a.defaults.PerTurnSeconds,
		ExpiryPolicy:   a.defaults.ExpiryPolicy,
		MaxItems:       a.defaults.MaxItems,
		CreatedAt:      now,
	}
	if legacy.TimerSecs >= 0 {
		s.PerTurnSeconds = legacy.TimerSecs
	}
	if p := models.ExpiryPolicy(strings.ToUpper(legacy.AutoPick)); p.Valid() {
		s.ExpiryPolicy = p
	}
	s.DraftOrder = preserveOrder(parseIDs(legacy.Order), ids)

	logger := log.With().Str("draft_id", id.String()).Logger()
	for i, p := range legacy.Picks {
		participant, err := uuid.Parse(p.UID)
		code := catalog.Normalize(p.Country)
		if err != nil || !a.items.Contains(code) {
			logger.Warn().Int("legacy_pick", i).Str("item_code", code).Msg("dropping unreadable legacy pick")
			continue
		}
		at := now
		if p.At > 0 {
			at = time.UnixMilli(p.At).UTC()
		}
		err = draft.ApplyPick(s, draft.PickInput{
			ParticipantID: participant,
			ItemCode:      code,
			Source:        models.PickSourceParticipant,
			SkipTurnCheck: true,
			Now:           at,
		})
		if err != nil {
			logger.Warn().Err(err).Int("legacy_pick", i).Str("item_code", code).Msg("dropping legacy pick")
		}
	}

	switch {
	case s.Status == models.SessionStatusCompleted:
		if len(s.RecentPicks) > 0 {
			started := s.RecentPicks[0].Timestamp
			s.StartedAt = &started
		}
	case len(s.RecentPicks) > 0 || strings.EqualFold(legacy.Status, "live"):
		started := now
		if len(s.RecentPicks) > 0 {
			started = s.RecentPicks[0].Timestamp
		}
		s.StartedAt = &started
	default:
		s.Status = models.SessionStatusScheduled
		s.StartedAt = nil
	}
	return s
}

func parseIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		if id, err := uuid.Parse(r); err == nil {
			out = append(out, id)
		}
	}
	return out
}
