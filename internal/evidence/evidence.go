// Package evidence is the append-only audit trail of the query pipeline and
// the compliance export built on top of it.
//
// Every query produces exactly one Entry, written after response generation.
// Entries snapshot the citation text at query time, so archiving or editing
// a document later never changes what the audit trail says was shown.
// No update or delete operation exists.
package evidence

import (
	"time"

	"github.com/google/uuid"

	"github.com/verityops/verity/internal/retrieval"
)

// Entry is one immutable per-query provenance record.
type Entry struct {
	ID    uuid.UUID `json:"id"`
	Owner string    `json:"owner"`
	Query string    `json:"query"`

	// ModelUsed names the provider that generated the response, or "none"
	// when no generation happened or every provider failed.
	ModelUsed string `json:"model_used"`

	SimilarityThreshold float64 `json:"similarity_threshold"`
	UnsupportedPolicy   string  `json:"unsupported_policy"`

	// Citations is the full ordered list shown to the model, snapshotted
	// with their literal chunk text.
	Citations []retrieval.Citation `json:"citations"`

	// RetrievalCount is the post-filter citation count.
	RetrievalCount int `json:"retrieval_count"`

	Grounded bool `json:"grounded"`
	Refused  bool `json:"refused"`

	// Response is the text returned to the caller, nil when none was
	// generated.
	Response *string `json:"response,omitempty"`

	ProcessingMS int64     `json:"processing_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
