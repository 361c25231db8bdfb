package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/mcdev12/countrydraft/go/internal/draft"
	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

func statusLabel(s models.SessionStatus) string {
	switch s {
	case models.SessionStatusLive:
		return color.New(color.FgGreen).Sprint(s)
	case models.SessionStatusCompleted:
		return color.New(color.FgBlue).Sprint(s)
	}
	return color.New(color.FgYellow).Sprint(s)
}

func writeState(w io.Writer, st *draftrpc.DraftState) {
	s := st.Session
	fmt.Fprintf(w, "Draft: %s\n", s.ID)
	fmt.Fprintf(w, "Status: %s (version %d)\n", statusLabel(s.Status), s.Version)
	fmt.Fprintf(w, "Timer: %ds per turn, on expiry %s\n", s.PerTurnSeconds, s.ExpiryPolicy)

	switch {
	case st.Problem != "":
		fmt.Fprintf(w, "Problem: %s\n", color.New(color.FgRed).Sprint(st.Problem))
	case st.Complete:
		fmt.Fprintln(w, "Complete")
	case st.CurrentActor != nil && len(s.Participants) > 0:
		slot := draft.SlotFor(s.PickIndex, len(s.Participants))
		fmt.Fprintf(w, "On the clock: %s (pick %d of %d, round %d)\n",
			color.New(color.FgHiMagenta).Sprint(*st.CurrentActor), slot.Overall, s.TotalPicks(), slot.Round)
	}

	simulated := make(map[uuid.UUID]bool, len(s.Simulated))
	for _, id := range s.Simulated {
		simulated[id] = true
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tPARTICIPANT\tITEMS")
	fmt.Fprintln(tw, "----\t-----------\t-----")
	for i, id := range s.DraftOrder {
		name := id.String()
		if simulated[id] {
			name += " (sim)"
		}
		items := append([]string(nil), st.Holdings[id]...)
		sort.Strings(items)
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, name, strings.Join(items, ", "))
	}
	tw.Flush()
}

func writeLive(w io.Writer, sessions []*models.DraftSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No live drafts.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DRAFT\tPARTICIPANTS\tPICK\tTIMER")
	fmt.Fprintln(tw, "-----\t------------\t----\t-----")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%d/%d\t%ds\n", s.ID, len(s.Participants), s.PickIndex, s.TotalPicks(), s.PerTurnSeconds)
	}
	tw.Flush()
}
