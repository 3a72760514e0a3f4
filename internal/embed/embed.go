// Package embed maps text to fixed-dimension vectors for similarity search.
//
// Two implementations are provided: a remote Google embedder for production
// and a deterministic hash-based embedder for development and tests. Both
// produce vectors of exactly Dimension entries so that chunks and queries
// embedded by either backend are directly comparable.
package embed

import (
	"context"
	"errors"
	"math"
)

// Dimension is the fixed embedding width used across the system.
// The chunks table declares vector(768); changing this requires a migration
// and re-ingestion of every document.
const Dimension = 768

// ErrProvider indicates the embedding backend failed or timed out.
// The failure is fatal to the current operation; no partial vectors are
// ever returned.
var ErrProvider = errors.New("embedding provider failure")

// Embedder generates one vector per input text, in input order.
//
// Implementations must return either len(texts) vectors of Dimension entries
// or an error; a failed batch fails the whole call so the caller can decide
// whether to retry.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CosineSimilarity returns dot(a,b)/(|a||b|).
//
// It fails closed: a zero-magnitude vector or a dimension mismatch yields
// 0.0, which can never pass a positive similarity threshold.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
