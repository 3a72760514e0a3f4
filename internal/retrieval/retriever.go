// Package retrieval scores candidate chunks against a query vector and
// returns the ranked citations that ground a response.
//
// The implementation is a linear scan over the owner's approved chunks. That
// is the correctness baseline: scoring is exact, ordering is fully
// deterministic, and an approximate-nearest-neighbor index can replace it
// behind the same interface without touching any other component.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/verityops/verity/internal/document"
	"github.com/verityops/verity/internal/embed"
)

// Bounds for Scope validation.
const (
	MinTopK = 1
	MaxTopK = 20
)

// ErrInvalidScope indicates an out-of-range top-K or similarity threshold.
var ErrInvalidScope = errors.New("invalid retrieval scope")

// ChunkScanner supplies the candidate chunks for one owner.
// *document.Store satisfies this interface.
type ChunkScanner interface {
	ScanChunks(ctx context.Context, owner string, docTypes []string) ([]document.ScannedChunk, error)
}

// Scope restricts a retrieval run.
type Scope struct {
	// Owner restricts candidates to one owner's documents.
	Owner string

	// DocTypes optionally restricts candidates to the given document types.
	DocTypes []string

	// TopK is the maximum number of citations returned, in [1, 20].
	TopK int

	// SimilarityThreshold is the minimum cosine similarity, in [0, 1].
	SimilarityThreshold float64
}

// Validate checks scope bounds before any I/O happens.
func (s Scope) Validate() error {
	if s.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidScope)
	}
	if s.TopK < MinTopK || s.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k %d outside [%d, %d]", ErrInvalidScope, s.TopK, MinTopK, MaxTopK)
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold %v outside [0, 1]", ErrInvalidScope, s.SimilarityThreshold)
	}
	for _, dt := range s.DocTypes {
		if !document.ValidType(dt) {
			return fmt.Errorf("%w: unknown doc_type %q", ErrInvalidScope, dt)
		}
	}
	return nil
}

// Citation pairs a scored chunk with its parent document's metadata.
// The chunk text is carried verbatim; evidence entries snapshot it.
type Citation struct {
	ChunkID           uuid.UUID `json:"chunk_id"`
	DocumentID        uuid.UUID `json:"document_id"`
	DocumentTitle     string    `json:"document_title"`
	DocType           string    `json:"doc_type"`
	ChunkIndex        int       `json:"chunk_index"`
	Text              string    `json:"text"`
	Score             float64   `json:"score"`
	DocumentCreatedAt time.Time `json:"document_created_at"`
}

// Retriever ranks chunks by cosine similarity to a query vector.
//
// Retriever is safe for concurrent use; retrieval is read-only.
type Retriever struct {
	scanner ChunkScanner
	logger  *slog.Logger
}

// New creates a Retriever over the given chunk source.
func New(scanner ChunkScanner, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{scanner: scanner, logger: logger}
}

// Retrieve returns at most scope.TopK citations scoring at or above the
// similarity threshold, ordered by (score desc, document created_at asc,
// chunk index asc) so identical inputs always cite identically.
//
// Zero matches is a normal outcome and returns an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, queryVec []float32, scope Scope) ([]Citation, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	candidates, err := r.scanner.ScanChunks(ctx, scope.Owner, scope.DocTypes)
	if err != nil {
		return nil, fmt.Errorf("fetching candidate chunks: %w", err)
	}

	citations := make([]Citation, 0, len(candidates))
	skipped := 0
	for _, cand := range candidates {
		// Invalid embeddings are discarded, never scored as zero.
		if len(cand.Chunk.Embedding) != len(queryVec) {
			skipped++
			continue
		}
		score := embed.CosineSimilarity(queryVec, cand.Chunk.Embedding)
		if score < scope.SimilarityThreshold {
			continue
		}
		citations = append(citations, Citation{
			ChunkID:           cand.Chunk.ID,
			DocumentID:        cand.DocID,
			DocumentTitle:     cand.Title,
			DocType:           cand.DocType,
			ChunkIndex:        cand.Chunk.Index,
			Text:              cand.Chunk.Text,
			Score:             score,
			DocumentCreatedAt: cand.Created,
		})
	}
	if skipped > 0 {
		r.logger.Warn("discarded chunks with invalid embeddings", "count", skipped, "owner", scope.Owner)
	}

	sort.Slice(citations, func(i, j int) bool {
		a, b := citations[i], citations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.DocumentCreatedAt.Equal(b.DocumentCreatedAt) {
			return a.DocumentCreatedAt.Before(b.DocumentCreatedAt)
		}
		return a.ChunkIndex < b.ChunkIndex
	})

	if len(citations) > scope.TopK {
		citations = citations[:scope.TopK]
	}

	r.logger.Debug("retrieval complete",
		"candidates", len(candidates),
		"matches", len(citations),
		"threshold", scope.SimilarityThreshold,
	)
	return citations, nil
}
