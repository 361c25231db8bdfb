package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
	"github.com/mcdev12/countrydraft/go/internal/draft/override"
)

const defaultTimeout = 10 * time.Second

var (
	serverURL string
	timeout   time.Duration
)

func newClient() *draftrpc.Client {
	return draftrpc.NewClient(&http.Client{Timeout: timeout}, strings.TrimRight(serverURL, "/"))
}

func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return id, nil
}

// stateRun wraps a call that returns a DraftState and prints the result.
func stateRun(do func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := newContext()
		defer cancel()
		st, err := do(ctx, newClient(), args)
		if err != nil {
			return err
		}
		writeState(os.Stdout, st)
		return nil
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state [draft-id]",
		Short: "Show a draft",
		Args:  cobra.ExactArgs(1),
		RunE: stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
			id, err := parseID("draft id", args[0])
			if err != nil {
				return nil, err
			}
			return c.State(ctx, id)
		}),
	}
}

func liveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "List live drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := newContext()
			defer cancel()
			sessions, err := newClient().ListLive(ctx)
			if err != nil {
				return fmt.Errorf("failed to list live drafts: %w", err)
			}
			writeLive(os.Stdout, sessions)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	var reset, shuffle bool
	cmd := &cobra.Command{
		Use:   "init [draft-id]",
		Short: "Create or repair a draft from its division roster",
		Args:  cobra.ExactArgs(1),
		RunE: stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
			id, err := parseID("draft id", args[0])
			if err != nil {
				return nil, err
			}
			return c.Initialize(ctx, &draftrpc.InitializeRequest{DraftID: id, ResetPicks: reset, ShuffleOrder: shuffle})
		}),
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear all picks")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "randomize the draft order")
	return cmd
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [draft-id]",
		Short: "Move a scheduled draft to live",
		Args:  cobra.ExactArgs(1),
		RunE: stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
			id, err := parseID("draft id", args[0])
			if err != nil {
				return nil, err
			}
			return c.StartDraft(ctx, id)
		}),
	}
}

func pickCmd() *cobra.Command {
	var expected int
	cmd := &cobra.Command{
		Use:   "pick [draft-id] [participant-id] [item-code]",
		Short: "Submit a pick for the participant on the clock",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
				id, err := parseID("draft id", args[0])
				if err != nil {
					return nil, err
				}
				participant, err := parseID("participant id", args[1])
				if err != nil {
					return nil, err
				}
				req := &draftrpc.ApplyPickRequest{DraftID: id, ParticipantID: participant, ItemCode: args[2]}
				if cmd.Flags().Changed("expect") {
					req.ExpectedPickIndex = &expected
				}
				return c.Pick(ctx, req)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&expected, "expect", 0, "reject the pick unless the draft is at this pick index")
	return cmd
}

func settingsCmd() *cobra.Command {
	var (
		seconds int
		policy  string
	)
	cmd := &cobra.Command{
		Use:   "settings [draft-id]",
		Short: "Change the pick timer or expiry policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
				id, err := parseID("draft id", args[0])
				if err != nil {
					return nil, err
				}
				req := &draftrpc.UpdateSettingsRequest{DraftID: id}
				if cmd.Flags().Changed("seconds") {
					req.PerTurnSeconds = &seconds
				}
				if cmd.Flags().Changed("policy") {
					p := strings.ToUpper(policy)
					req.ExpiryPolicy = &p
				}
				if req.PerTurnSeconds == nil && req.ExpiryPolicy == nil {
					return nil, errors.New("nothing to change: pass --seconds or --policy")
				}
				return c.UpdateSettings(ctx, req)
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 0, "seconds per turn, 0 disables the timer")
	cmd.Flags().StringVar(&policy, "policy", "", "expiry policy: RANDOM, BEST or MANUAL")
	return cmd
}

func targetOverride(action override.Action, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [draft-id] [participant-id] [item-code]",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
			id, err := parseID("draft id", args[0])
			if err != nil {
				return nil, err
			}
			participant, err := parseID("participant id", args[1])
			if err != nil {
				return nil, err
			}
			return c.Override(ctx, &draftrpc.OverrideRequest{
				DraftID:             id,
				Action:              string(action),
				TargetParticipantID: participant,
				ItemCode:            args[2],
			})
		}),
	}
}

func forceCmd() *cobra.Command {
	return targetOverride(override.ActionForce, "force", "Make the current pick on a participant's behalf")
}

func manualCmd() *cobra.Command {
	return targetOverride(override.ActionManual, "manual", "Give a participant an item outside the pick order")
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo [draft-id]",
		Short: "Take back the most recent sequential pick",
		Args:  cobra.ExactArgs(1),
		RunE: stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
			id, err := parseID("draft id", args[0])
			if err != nil {
				return nil, err
			}
			return c.Override(ctx, &draftrpc.OverrideRequest{DraftID: id, Action: string(override.ActionUndo)})
		}),
	}
}

func reinitCmd() *cobra.Command {
	var reset, shuffle bool
	cmd := &cobra.Command{
		Use:   "reinit [draft-id]",
		Short: "Rebuild a draft from the current roster",
		Args:  cobra.ExactArgs(1),
		RunE: stateRun(func(ctx context.Context, c *draftrpc.Client, args []string) (*draftrpc.DraftState, error) {
			id, err := parseID("draft id", args[0])
			if err != nil {
				return nil, err
			}
			return c.Override(ctx, &draftrpc.OverrideRequest{
				DraftID:      id,
				Action:       string(override.ActionReinit),
				ResetPicks:   reset,
				ShuffleOrder: shuffle,
			})
		}),
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear all picks")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "randomize the draft order")
	return cmd
}
