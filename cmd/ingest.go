package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verityops/verity/internal/service"
)

var (
	flagIngestTitle string
	flagIngestType  string
	flagIngestFile  string
	flagIngestMeta  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest an approved document into the corpus",
	Long: `Ingest reads document text from --file (or stdin), splits it into
overlapping chunks, embeds every chunk, and approves the document for
retrieval. The commit is atomic: a document is never approved with a
partial chunk set.`,
	Example: `  verity ingest --owner acme --title "Fire Safety SOP" --type sop --file sop.txt
  cat policy.txt | verity ingest --owner acme --title "HR Policy" --type policy`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestTitle, "title", "", "document title (required)")
	ingestCmd.Flags().StringVar(&flagIngestType, "type", "", "document type: sop, policy, audit, manual, report (required)")
	ingestCmd.Flags().StringVar(&flagIngestFile, "file", "", "path to the document text; omit to read stdin")
	ingestCmd.Flags().StringArrayVar(&flagIngestMeta, "meta", nil, "metadata entry as key=value (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if err := requireOwner(); err != nil {
		return err
	}

	content, err := readIngestContent()
	if err != nil {
		return err
	}

	metadata := make(map[string]string, len(flagIngestMeta))
	for _, kv := range flagIngestMeta {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --meta entry %q, want key=value", kv)
		}
		metadata[key] = value
	}

	a, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := a.Service.Ingest(cmd.Context(), service.IngestRequest{
		Owner:    flagOwner,
		Title:    flagIngestTitle,
		Content:  content,
		DocType:  flagIngestType,
		Metadata: metadata,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %q\n", doc.Title)
	fmt.Printf("  ID:     %s\n", doc.ID)
	fmt.Printf("  Type:   %s\n", doc.DocType)
	fmt.Printf("  Status: %s\n", doc.Status)
	fmt.Printf("  Chunks: %d\n", doc.ChunkCount)
	return nil
}

func readIngestContent() (string, error) {
	if flagIngestFile != "" {
		data, err := os.ReadFile(flagIngestFile)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", flagIngestFile, err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
