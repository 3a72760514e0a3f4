package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/verityops/verity/internal/embed"
)

// documentCols is the standard SELECT column list for scanDocument.
const documentCols = `id, owner, title, content, doc_type, status,
	chunk_count, metadata, created_at, updated_at`

// Store manages documents and chunks in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a document Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts a new document in the pending state with zero chunks.
func (s *Store) Create(ctx context.Context, owner, title, content, docType string, metadata map[string]string) (*Document, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (owner, title, content, doc_type, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+documentCols,
		owner, title, content, docType, StatusPending, metadataJSON,
	)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.logger.Debug("created document",
		"id", doc.ID, "owner", owner, "doc_type", docType, "bytes", len(content))
	return doc, nil
}

// SetStatus updates a document's lifecycle state and chunk count.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status, chunkCount int) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status: %q", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, updated_at = now() WHERE id = $3`,
		status, chunkCount, id,
	)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CommitChunks replaces a document's chunk set and approves it in a single
// transaction. No reader ever observes an approved document with a partial
// chunk set.
//
// Chunk indices must be 0-based and contiguous, and every embedding must
// have exactly embed.Dimension entries; violations return ErrInvalidChunkSet
// before any write.
func (s *Store) CommitChunks(ctx context.Context, docID uuid.UUID, chunks []NewChunk) error {
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("%w: index %d at position %d", ErrInvalidChunkSet, c.Index, i)
		}
		if len(c.Embedding) != embed.Dimension {
			return fmt.Errorf("%w: chunk %d embedding has %d dimensions, want %d",
				ErrInvalidChunkSet, i, len(c.Embedding), embed.Dimension)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Re-ingestion path: stale chunks from a previous run are replaced.
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, chunk_index, content, embedding, token_count)
			 VALUES ($1, $2, $3, $4, $5)`,
			docID, c.Index, c.Text, pgvector.NewVector(c.Embedding), c.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, updated_at = now() WHERE id = $3`,
		StatusApproved, len(chunks), docID,
	)
	if err != nil {
		return fmt.Errorf("approving document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk transaction: %w", err)
	}

	s.logger.Debug("committed chunks", "document_id", docID, "chunks", len(chunks))
	return nil
}

// ListOptions filters and pages a document listing.
type ListOptions struct {
	Status   Status // empty = any status
	DocType  string // empty = any type
	Page     int    // 1-based; values < 1 are treated as 1
	PageSize int    // values < 1 select the default of 20
}

// List returns the owner's documents ordered newest first.
func (s *Store) List(ctx context.Context, owner string, opts ListOptions) ([]*Document, error) {
	page := max(opts.Page, 1)
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := `SELECT ` + documentCols + ` FROM documents WHERE owner = $1`
	args := []any{owner}
	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if opts.DocType != "" {
		args = append(args, opts.DocType)
		query += fmt.Sprintf(` AND doc_type = $%d`, len(args))
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// Get retrieves one document scoped to its owner.
// A missing id and a wrong owner both return ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID, owner string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1 AND owner = $2`,
		id, owner,
	)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// Archive soft-deletes a document, removing it from future retrieval.
// Returns false when the document does not exist for this owner or is
// already archived.
func (s *Store) Archive(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = now()
		 WHERE id = $2 AND owner = $3 AND status <> $1`,
		StatusArchived, id, owner,
	)
	if err != nil {
		return false, fmt.Errorf("archiving document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ScanChunks bulk-fetches every chunk of the owner's approved documents,
// optionally restricted to the given document types. One query, no
// per-chunk round trips.
func (s *Store) ScanChunks(ctx context.Context, owner string, docTypes []string) ([]ScannedChunk, error) {
	query := `SELECT c.id, c.document_id, c.chunk_index, c.content, c.embedding, c.token_count,
	                 d.title, d.doc_type, d.created_at, d.metadata
	          FROM chunks c
	          JOIN documents d ON d.id = c.document_id
	          WHERE d.owner = $1 AND d.status = $2`
	args := []any{owner, StatusApproved}
	if len(docTypes) > 0 {
		args = append(args, docTypes)
		query += fmt.Sprintf(` AND d.doc_type = ANY($%d)`, len(args))
	}
	query += ` ORDER BY d.created_at ASC, c.chunk_index ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning chunks: %w", err)
	}
	defer rows.Close()

	var out []ScannedChunk
	for rows.Next() {
		var (
			sc           ScannedChunk
			vec          pgvector.Vector
			metadataJSON []byte
		)
		if err := rows.Scan(
			&sc.Chunk.ID, &sc.Chunk.DocumentID, &sc.Chunk.Index, &sc.Chunk.Text, &vec, &sc.Chunk.TokenCount,
			&sc.Title, &sc.DocType, &sc.Created, &metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		sc.Chunk.Embedding = vec.Slice()
		sc.DocID = sc.Chunk.DocumentID
		if err := json.Unmarshal(metadataJSON, &sc.Metadata); err != nil {
			s.logger.Warn("failed to parse document metadata", "document_id", sc.DocID, "error", err)
			sc.Metadata = map[string]string{}
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning chunks: %w", err)
	}
	return out, nil
}

// scanDocument reads one document row from either pgx.Row or pgx.Rows.
func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc          Document
		metadataJSON []byte
	)
	if err := row.Scan(
		&doc.ID, &doc.Owner, &doc.Title, &doc.Content, &doc.DocType, &doc.Status,
		&doc.ChunkCount, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		doc.Metadata = map[string]string{}
	}
	return &doc, nil
}
