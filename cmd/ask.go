package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verityops/verity/internal/answer"
	"github.com/verityops/verity/internal/service"
)

var (
	flagAskTopK          int
	flagAskThreshold     float64
	flagAskPolicy        string
	flagAskTypes         []string
	flagAskCitationsOnly bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the approved corpus",
	Long: `Ask embeds the question, retrieves the best-matching approved chunks,
and generates an answer grounded in them. When nothing in the corpus
supports the question, the configured policy decides whether to refuse,
answer with a warning, or answer freely. Every query is recorded in the
audit log.`,
	Example: `  verity ask --owner acme "How often are extinguishers inspected?"
  verity ask --owner acme --types sop,policy --threshold 0.5 "Who approves refunds?"
  verity ask --owner acme --citations-only "What does the travel policy cover?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&flagAskTopK, "top-k", 0, "maximum citations to return (default from config)")
	askCmd.Flags().Float64Var(&flagAskThreshold, "threshold", -1, "minimum similarity score in [0,1] (default from config)")
	askCmd.Flags().StringVar(&flagAskPolicy, "policy", "", "unsupported-query policy: refuse, flag, allow (default from config)")
	askCmd.Flags().StringSliceVar(&flagAskTypes, "types", nil, "restrict retrieval to document types")
	askCmd.Flags().BoolVar(&flagAskCitationsOnly, "citations-only", false, "skip generation, return citations and verdict only")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}

	req := service.AskRequest{
		Owner:           flagOwner,
		Query:           strings.Join(args, " "),
		DocTypes:        flagAskTypes,
		TopK:            flagAskTopK,
		IncludeResponse: !flagAskCitationsOnly,
	}
	if flagAskThreshold >= 0 {
		req.SimilarityThreshold = &flagAskThreshold
	}
	if flagAskPolicy != "" {
		policy, err := answer.ParsePolicy(flagAskPolicy)
		if err != nil {
			return err
		}
		req.Policy = policy
	}

	a, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := a.Service.Ask(cmd.Context(), req)
	if err != nil {
		return err
	}

	printAskResult(res)
	return nil
}

func printAskResult(res *service.AskResult) {
	if res.Refused {
		fmt.Println("Refused:", res.RefusalReason)
	} else if res.Response != nil {
		fmt.Println(*res.Response)
	}

	fmt.Println()
	if res.Grounded {
		fmt.Printf("Grounded in %d source(s):\n", len(res.Citations))
	} else {
		fmt.Println("Not grounded in any approved document.")
	}
	for i, c := range res.Citations {
		fmt.Printf("  [Source %d] %s (%s, chunk %d, similarity %.2f)\n",
			i+1, c.DocumentTitle, c.DocType, c.ChunkIndex, c.Score)
	}

	fmt.Println()
	fmt.Printf("model=%s elapsed=%dms", res.ModelUsed, res.ProcessingMS)
	if !res.EvidenceRecorded {
		fmt.Print(" (audit write failed)")
	}
	fmt.Println()
}
