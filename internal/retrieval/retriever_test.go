package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/verityops/verity/internal/document"
	"github.com/verityops/verity/internal/embed"
	"github.com/verityops/verity/internal/log"
)

// fakeScanner returns a fixed candidate set.
type fakeScanner struct {
	chunks []document.ScannedChunk
	err    error
}

func (f *fakeScanner) ScanChunks(_ context.Context, _ string, _ []string) ([]document.ScannedChunk, error) {
	return f.chunks, f.err
}

// candidate builds a ScannedChunk whose embedding points at the given angle
// in the first two dimensions, giving precise control over cosine scores.
func candidate(title string, docCreated time.Time, idx int, vec []float32) document.ScannedChunk {
	docID := uuid.New()
	return document.ScannedChunk{
		Chunk: document.Chunk{
			ID:         uuid.New(),
			DocumentID: docID,
			Index:      idx,
			Text:       title + " chunk",
			Embedding:  vec,
		},
		DocID:   docID,
		Title:   title,
		DocType: document.TypeSOP,
		Created: docCreated,
	}
}

func unit(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func scope() Scope {
	return Scope{Owner: "acme", TopK: 5, SimilarityThreshold: 0.2}
}

func TestRetrieve_OrdersByScoreDescending(t *testing.T) {
	now := time.Now().UTC()
	query := unit(embed.Dimension, 0)

	// Partial overlap with the query axis yields decreasing scores.
	mid := make([]float32, embed.Dimension)
	mid[0], mid[1] = 1, 1 // cos = ~0.707
	low := make([]float32, embed.Dimension)
	low[0], low[1] = 1, 2 // cos = ~0.447

	scanner := &fakeScanner{chunks: []document.ScannedChunk{
		candidate("low", now, 0, low),
		candidate("exact", now, 0, unit(embed.Dimension, 0)), // cos = 1
		candidate("mid", now, 0, mid),
	}}

	got, err := New(scanner, log.NewNop()).Retrieve(context.Background(), query, scope())
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Retrieve() = %d citations, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("citations not score-descending at %d: %v then %v", i, got[i-1].Score, got[i].Score)
		}
	}
	if got[0].DocumentTitle != "exact" {
		t.Errorf("top citation = %q, want %q", got[0].DocumentTitle, "exact")
	}
}

func TestRetrieve_TieBreaksByDocumentAgeThenChunkIndex(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	query := unit(embed.Dimension, 0)
	same := unit(embed.Dimension, 0)

	scanner := &fakeScanner{chunks: []document.ScannedChunk{
		candidate("newer-doc", newer, 0, same),
		candidate("older-doc", older, 1, same),
		candidate("older-doc", older, 0, same),
	}}

	got, err := New(scanner, log.NewNop()).Retrieve(context.Background(), query, scope())
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Retrieve() = %d citations, want 3", len(got))
	}
	if got[0].DocumentTitle != "older-doc" || got[0].ChunkIndex != 0 {
		t.Errorf("first citation = %s/%d, want older-doc/0", got[0].DocumentTitle, got[0].ChunkIndex)
	}
	if got[1].DocumentTitle != "older-doc" || got[1].ChunkIndex != 1 {
		t.Errorf("second citation = %s/%d, want older-doc/1", got[1].DocumentTitle, got[1].ChunkIndex)
	}
	if got[2].DocumentTitle != "newer-doc" {
		t.Errorf("third citation = %s, want newer-doc", got[2].DocumentTitle)
	}
}

func TestRetrieve_FiltersBelowThreshold(t *testing.T) {
	now := time.Now().UTC()
	query := unit(embed.Dimension, 0)

	scanner := &fakeScanner{chunks: []document.ScannedChunk{
		candidate("match", now, 0, unit(embed.Dimension, 0)),
		candidate("orthogonal", now, 0, unit(embed.Dimension, 1)), // cos = 0
	}}

	got, err := New(scanner, log.NewNop()).Retrieve(context.Background(), query, scope())
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Retrieve() = %d citations, want 1", len(got))
	}
	for _, c := range got {
		if c.Score < 0.2 {
			t.Errorf("citation score %v below threshold", c.Score)
		}
	}
}

func TestRetrieve_TruncatesToTopK(t *testing.T) {
	now := time.Now().UTC()
	query := unit(embed.Dimension, 0)

	var chunks []document.ScannedChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, candidate("doc", now.Add(time.Duration(i)*time.Minute), 0, unit(embed.Dimension, 0)))
	}
	scanner := &fakeScanner{chunks: chunks}

	sc := scope()
	sc.TopK = 3
	got, err := New(scanner, log.NewNop()).Retrieve(context.Background(), query, sc)
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Retrieve() = %d citations, want top_k=3", len(got))
	}
}

func TestRetrieve_DiscardsInvalidEmbeddings(t *testing.T) {
	now := time.Now().UTC()
	query := unit(embed.Dimension, 0)

	bad := candidate("bad", now, 0, []float32{1, 0, 0}) // wrong dimension
	scanner := &fakeScanner{chunks: []document.ScannedChunk{
		bad,
		candidate("good", now, 0, unit(embed.Dimension, 0)),
	}}

	got, err := New(scanner, log.NewNop()).Retrieve(context.Background(), query, scope())
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].DocumentTitle != "good" {
		t.Errorf("Retrieve() = %+v, want only the valid candidate", got)
	}
}

func TestRetrieve_EmptyResultIsNotAnError(t *testing.T) {
	scanner := &fakeScanner{}

	got, err := New(scanner, log.NewNop()).Retrieve(context.Background(), unit(embed.Dimension, 0), scope())
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Retrieve() = %d citations, want 0", len(got))
	}
}

func TestScopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr bool
	}{
		{name: "valid", scope: Scope{Owner: "acme", TopK: 5, SimilarityThreshold: 0.3}},
		{name: "valid with doc types", scope: Scope{Owner: "acme", TopK: 5, SimilarityThreshold: 0.3, DocTypes: []string{document.TypeSOP, document.TypePolicy}}},
		{name: "missing owner", scope: Scope{TopK: 5, SimilarityThreshold: 0.3}, wantErr: true},
		{name: "top_k zero", scope: Scope{Owner: "acme", TopK: 0, SimilarityThreshold: 0.3}, wantErr: true},
		{name: "top_k too large", scope: Scope{Owner: "acme", TopK: 21, SimilarityThreshold: 0.3}, wantErr: true},
		{name: "threshold negative", scope: Scope{Owner: "acme", TopK: 5, SimilarityThreshold: -0.1}, wantErr: true},
		{name: "threshold above one", scope: Scope{Owner: "acme", TopK: 5, SimilarityThreshold: 1.1}, wantErr: true},
		{name: "unknown doc type", scope: Scope{Owner: "acme", TopK: 5, SimilarityThreshold: 0.3, DocTypes: []string{"memes"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
