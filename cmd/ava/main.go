// Ava command-line tools: interactive chat, database migration, and
// drop-off location preparation.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ava",
		Short:         "Ava car-buying assistant tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// keep the chat transcript clean; warnings still surface
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			})))
			if err := godotenv.Load(); err != nil {
				slog.Debug("No .env file found, using environment variables")
			}
		},
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newMigrateCmd(),
		newLocationsCmd(),
	)
	return rootCmd
}
