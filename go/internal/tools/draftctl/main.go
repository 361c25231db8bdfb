// Command draftctl is the commissioner's command line for the draft service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "draftctl",
		Short: "Inspect and steer country drafts",
		Long: `draftctl talks to the draft service over Connect. It shows draft state,
submits picks and runs commissioner overrides.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("DRAFT_SERVICE_URL", "http://localhost:8080"), "draft service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "request timeout")

	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(liveCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(pickCmd())
	rootCmd.AddCommand(settingsCmd())

	// Commissioner overrides
	rootCmd.AddCommand(forceCmd())
	rootCmd.AddCommand(manualCmd())
	rootCmd.AddCommand(undoCmd())
	rootCmd.AddCommand(reinitCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
