package answer

import (
	"fmt"
	"strings"

	"github.com/verityops/verity/internal/retrieval"
)

// UnsupportedWarning is the mandatory banner prepended to responses
// generated under PolicyFlag when no citations support the query.
const UnsupportedWarning = "⚠️ WARNING: This answer is NOT grounded in your approved documents. " +
	"Treat it as general information, not organizational guidance.\n\n"

// RefusalReason is the fixed explanation recorded when PolicyRefuse
// declines an unsupported query.
const RefusalReason = "no approved documents matched the query at the configured similarity threshold"

// Unavailable is the fixed degradation string returned when every
// configured LLM provider fails. Citations and evidence data are still
// returned alongside it.
const Unavailable = "generation unavailable"

// System prompt templates, one per response shape.
const (
	groundedSystemPrompt = `You are a compliance assistant. Answer the question using ONLY the numbered source excerpts provided.
Cite sources inline by their index, e.g. [Source 1]. If the excerpts only partially answer the question, say exactly which part is not covered.
Never invent facts that are not in the excerpts.`

	flaggedSystemPrompt = `You are a compliance assistant. No approved documents matched this question, so you are answering from general knowledge.
Answer concisely and factually. Do not claim organizational policy; do not fabricate citations.`

	openSystemPrompt = `You are a compliance assistant. Answer the question concisely and factually from general knowledge.`
)

// buildUserPrompt renders the query and, when present, each citation as a
// numbered [Source N] block with its title, type, score, and literal text.
func buildUserPrompt(query string, citations []retrieval.Citation) string {
	var sb strings.Builder

	if len(citations) > 0 {
		sb.WriteString("Source excerpts:\n\n")
		for i, c := range citations {
			fmt.Fprintf(&sb, "[Source %d] %s (%s, similarity %.2f)\n%s\n\n",
				i+1, c.DocumentTitle, c.DocType, c.Score, c.Text)
		}
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}
