package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verityops/verity/internal/document"
)

var (
	flagDocsStatus   string
	flagDocsType     string
	flagDocsPage     int
	flagDocsPageSize int
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage documents in the corpus",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's documents",
	RunE:  runDocsList,
}

var docsArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Archive a document, removing it from future retrieval",
	Long: `Archive soft-deletes a document: it stops matching new queries, but
evidence entries that cited it keep their text snapshots unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocsArchive,
}

func init() {
	docsListCmd.Flags().StringVar(&flagDocsStatus, "status", "", "filter by status: pending, processing, approved, rejected, archived")
	docsListCmd.Flags().StringVar(&flagDocsType, "type", "", "filter by document type")
	docsListCmd.Flags().IntVar(&flagDocsPage, "page", 1, "page number")
	docsListCmd.Flags().IntVar(&flagDocsPageSize, "page-size", 20, "documents per page")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsArchiveCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	if err := requireOwner(); err != nil {
		return err
	}
	if flagDocsStatus != "" && !document.Status(flagDocsStatus).Valid() {
		return fmt.Errorf("invalid status %q", flagDocsStatus)
	}

	a, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := a.Documents.List(cmd.Context(), flagOwner, document.ListOptions{
		Status:   document.Status(flagDocsStatus),
		DocType:  flagDocsType,
		Page:     flagDocsPage,
		PageSize: flagDocsPageSize,
	})
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%s  %-10s %-8s chunks=%-3d %s\n",
			d.ID, d.Status, d.DocType, d.ChunkCount, d.Title)
	}
	return nil
}

func runDocsArchive(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	a, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	archived, err := a.Documents.Archive(cmd.Context(), id, flagOwner)
	if err != nil {
		return err
	}
	if !archived {
		fmt.Println("Nothing to archive: document not found or already archived.")
		return nil
	}

	fmt.Printf("Archived %s\n", id)
	return nil
}
