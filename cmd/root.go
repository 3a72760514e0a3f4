// Package cmd implements the verity command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/verityops/verity/internal/app"
	"github.com/verityops/verity/internal/config"
	"github.com/verityops/verity/internal/log"
)

var (
	flagOwner string
	flagDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "verity",
	Short: "Grounded answers from your organization's approved documents",
	Long: `Verity ingests approved compliance documents, answers questions with
citations back to the exact source passages, and keeps an append-only
audit trail that can be exported as a compliance evidence pack.

Answers are only marked grounded when supporting passages exist; by
default, unsupported questions are refused rather than guessed at.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", "", "owner identity scoping all operations (required)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

// newLogger builds the CLI logger. Debug level comes from --debug or the
// DEBUG environment variable.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagDebug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// setupApp loads configuration and wires the application container.
// The returned cleanup must be deferred by the caller.
func setupApp(cmd *cobra.Command) (*app.App, func(), error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	return app.New(cmd.Context(), cfg, logger)
}

// requireOwner enforces the --owner flag for owner-scoped commands.
func requireOwner() error {
	if flagOwner == "" {
		return fmt.Errorf("--owner is required")
	}
	return nil
}
