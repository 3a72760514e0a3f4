package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/verityops/verity/db"
	"github.com/verityops/verity/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Migrate applies the embedded schema migrations to the configured
PostgreSQL database. Migrations also run automatically on startup; this
command exists for provisioning a database ahead of first use.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(*cobra.Command, []string) error {
	slog.SetDefault(newLogger())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return err
	}

	fmt.Println("Migrations applied.")
	return nil
}
