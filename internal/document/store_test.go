package document_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityops/verity/internal/document"
	"github.com/verityops/verity/internal/embed"
	"github.com/verityops/verity/internal/log"
	"github.com/verityops/verity/internal/testutil"
)

// axisVector returns a 768-dimensional unit vector along one axis.
func axisVector(axis int) []float32 {
	v := make([]float32, embed.Dimension)
	v[axis%embed.Dimension] = 1
	return v
}

func newChunks(texts ...string) []document.NewChunk {
	chunks := make([]document.NewChunk, len(texts))
	for i, text := range texts {
		chunks[i] = document.NewChunk{
			Index:      i,
			Text:       text,
			Embedding:  axisVector(i),
			TokenCount: len(text) / 4,
		}
	}
	return chunks
}

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed store tests in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := document.NewStore(tdb.Pool, log.NewNop())
	require.NoError(t, err)

	t.Run("create starts pending", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Fire Safety SOP", "content", document.TypeSOP,
			map[string]string{"revision": "3"})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, doc.ID)
		assert.Equal(t, document.StatusPending, doc.Status)
		assert.Equal(t, 0, doc.ChunkCount)
		assert.Equal(t, "3", doc.Metadata["revision"])
		assert.False(t, doc.CreatedAt.IsZero())
	})

	t.Run("get is owner scoped", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "HR Policy", "content", document.TypePolicy, nil)
		require.NoError(t, err)

		got, err := store.Get(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)

		// A wrong owner is indistinguishable from a missing document.
		_, err = store.Get(ctx, doc.ID, "globex")
		assert.ErrorIs(t, err, document.ErrNotFound)

		_, err = store.Get(ctx, uuid.New(), "acme")
		assert.ErrorIs(t, err, document.ErrNotFound)
	})

	t.Run("set status", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Audit Log Manual", "content", document.TypeManual, nil)
		require.NoError(t, err)

		require.NoError(t, store.SetStatus(ctx, doc.ID, document.StatusProcessing, 0))
		got, err := store.Get(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.Equal(t, document.StatusProcessing, got.Status)

		assert.Error(t, store.SetStatus(ctx, doc.ID, document.Status("bogus"), 0))
		assert.ErrorIs(t, store.SetStatus(ctx, uuid.New(), document.StatusApproved, 0), document.ErrNotFound)
	})

	t.Run("commit chunks approves atomically", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Incident SOP", "content", document.TypeSOP, nil)
		require.NoError(t, err)

		require.NoError(t, store.CommitChunks(ctx, doc.ID, newChunks("first chunk", "second chunk")))

		got, err := store.Get(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.Equal(t, document.StatusApproved, got.Status)
		assert.Equal(t, 2, got.ChunkCount)

		scanned, err := store.ScanChunks(ctx, "acme", []string{document.TypeSOP})
		require.NoError(t, err)

		var texts []string
		for _, sc := range scanned {
			if sc.DocID == doc.ID {
				texts = append(texts, sc.Chunk.Text)
				assert.Len(t, sc.Chunk.Embedding, embed.Dimension)
			}
		}
		assert.Equal(t, []string{"first chunk", "second chunk"}, texts)
	})

	t.Run("commit chunks rejects bad input", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Gapped SOP", "content", document.TypeSOP, nil)
		require.NoError(t, err)

		gapped := newChunks("a", "b")
		gapped[1].Index = 5
		assert.ErrorIs(t, store.CommitChunks(ctx, doc.ID, gapped), document.ErrInvalidChunkSet)

		short := newChunks("a")
		short[0].Embedding = []float32{1, 0}
		assert.ErrorIs(t, store.CommitChunks(ctx, doc.ID, short), document.ErrInvalidChunkSet)

		// Nothing was written and the document never got approved.
		got, err := store.Get(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.Equal(t, document.StatusPending, got.Status)
	})

	t.Run("recommit replaces previous chunks", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Versioned SOP", "content", document.TypeSOP, nil)
		require.NoError(t, err)

		require.NoError(t, store.CommitChunks(ctx, doc.ID, newChunks("old a", "old b", "old c")))
		require.NoError(t, store.CommitChunks(ctx, doc.ID, newChunks("new a")))

		got, err := store.Get(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.Equal(t, 1, got.ChunkCount)

		scanned, err := store.ScanChunks(ctx, "acme", nil)
		require.NoError(t, err)
		for _, sc := range scanned {
			if sc.DocID == doc.ID {
				assert.Equal(t, "new a", sc.Chunk.Text)
			}
		}
	})

	t.Run("archive removes from scan but keeps row", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Retired SOP", "content", document.TypeSOP, nil)
		require.NoError(t, err)
		require.NoError(t, store.CommitChunks(ctx, doc.ID, newChunks("retired text")))

		archived, err := store.Archive(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.True(t, archived)

		// Second archive is a no-op.
		archived, err = store.Archive(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.False(t, archived)

		scanned, err := store.ScanChunks(ctx, "acme", nil)
		require.NoError(t, err)
		for _, sc := range scanned {
			assert.NotEqual(t, doc.ID, sc.DocID, "archived document must not be scanned")
		}

		got, err := store.Get(ctx, doc.ID, "acme")
		require.NoError(t, err)
		assert.Equal(t, document.StatusArchived, got.Status)
	})

	t.Run("archive is owner scoped", func(t *testing.T) {
		doc, err := store.Create(ctx, "acme", "Private SOP", "content", document.TypeSOP, nil)
		require.NoError(t, err)

		archived, err := store.Archive(ctx, doc.ID, "globex")
		require.NoError(t, err)
		assert.False(t, archived)
	})

	t.Run("list filters", func(t *testing.T) {
		owner := "list-owner"
		for i := 0; i < 3; i++ {
			doc, err := store.Create(ctx, owner, "Report", "content", document.TypeReport, nil)
			require.NoError(t, err)
			if i == 0 {
				require.NoError(t, store.CommitChunks(ctx, doc.ID, newChunks("r")))
			}
		}

		all, err := store.List(ctx, owner, document.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		approved, err := store.List(ctx, owner, document.ListOptions{Status: document.StatusApproved})
		require.NoError(t, err)
		assert.Len(t, approved, 1)

		paged, err := store.List(ctx, owner, document.ListOptions{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Len(t, paged, 1)

		none, err := store.List(ctx, owner, document.ListOptions{DocType: document.TypeAudit})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("scan chunks filters by owner and type", func(t *testing.T) {
		owner := "scan-owner"
		sop, err := store.Create(ctx, owner, "SOP", "content", document.TypeSOP, nil)
		require.NoError(t, err)
		require.NoError(t, store.CommitChunks(ctx, sop.ID, newChunks("sop text")))

		policy, err := store.Create(ctx, owner, "Policy", "content", document.TypePolicy, nil)
		require.NoError(t, err)
		require.NoError(t, store.CommitChunks(ctx, policy.ID, newChunks("policy text")))

		onlySOP, err := store.ScanChunks(ctx, owner, []string{document.TypeSOP})
		require.NoError(t, err)
		require.Len(t, onlySOP, 1)
		assert.Equal(t, "sop text", onlySOP[0].Chunk.Text)
		assert.Equal(t, "SOP", onlySOP[0].Title)

		both, err := store.ScanChunks(ctx, owner, nil)
		require.NoError(t, err)
		assert.Len(t, both, 2)

		other, err := store.ScanChunks(ctx, "someone-else", nil)
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}
