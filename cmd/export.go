package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagExportActor string
	flagExportFrom  string
	flagExportTo    string
	flagExportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a compliance evidence pack",
	Long: `Export bundles the owner's documents and the audit log for the given
period into a single JSON evidence pack with summary statistics. The
export is a pure read; running it twice over unchanged data yields
identical contents.`,
	Example: `  verity export --owner acme --actor auditor@acme --out pack.json
  verity export --owner acme --actor auditor@acme --from 2026-01-01 --to 2026-06-30`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportActor, "actor", "", "identity performing the export (required)")
	exportCmd.Flags().StringVar(&flagExportFrom, "from", "", "period start, YYYY-MM-DD (inclusive)")
	exportCmd.Flags().StringVar(&flagExportTo, "to", "", "period end, YYYY-MM-DD (inclusive)")
	exportCmd.Flags().StringVar(&flagExportOut, "out", "", "output file; omit for stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := requireOwner(); err != nil {
		return err
	}

	from, err := parseDateFlag(flagExportFrom, false)
	if err != nil {
		return err
	}
	to, err := parseDateFlag(flagExportTo, true)
	if err != nil {
		return err
	}

	a, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	pack, err := a.Service.Export(cmd.Context(), flagOwner, flagExportActor, from, to)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding evidence pack: %w", err)
	}

	if flagExportOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(flagExportOut, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", flagExportOut, err)
	}

	fmt.Printf("Wrote evidence pack %s to %s\n", pack.ExportID, flagExportOut)
	fmt.Printf("  Documents: %d (%d approved)\n", pack.Summary.TotalDocuments, pack.Summary.ApprovedDocuments)
	fmt.Printf("  Queries:   %d (%.1f%% grounded, %.1f%% refused)\n",
		pack.Summary.TotalQueries, pack.Summary.GroundedPercent, pack.Summary.RefusedPercent)
	return nil
}

// parseDateFlag parses a YYYY-MM-DD flag. End dates extend to the last
// instant of the day so the bound is inclusive.
func parseDateFlag(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", value, err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
