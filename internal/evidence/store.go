package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verityops/verity/internal/retrieval"
)

// Store persists evidence entries in PostgreSQL. It exposes only Append and
// ListPeriod; the table has no update or delete path.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an evidence Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Append writes one entry and fills in its generated ID and timestamp.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	citations := e.Citations
	if citations == nil {
		citations = []retrieval.Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO evidence_entries
		     (owner, query, model_used, similarity_threshold, unsupported_policy,
		      citations, retrieval_count, grounded, refused, response, processing_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		e.Owner, e.Query, e.ModelUsed, e.SimilarityThreshold, e.UnsupportedPolicy,
		citationsJSON, e.RetrievalCount, e.Grounded, e.Refused, e.Response, e.ProcessingMS,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending evidence entry: %w", err)
	}

	s.logger.Debug("appended evidence entry",
		"id", e.ID, "owner", e.Owner, "grounded", e.Grounded, "refused", e.Refused)
	return nil
}

// ListPeriod returns the owner's entries within [from, to], oldest first.
// Nil bounds leave that side of the period open.
func (s *Store) ListPeriod(ctx context.Context, owner string, from, to *time.Time) ([]*Entry, error) {
	query := `SELECT id, owner, query, model_used, similarity_threshold, unsupported_policy,
	                 citations, retrieval_count, grounded, refused, response, processing_ms, created_at
	          FROM evidence_entries WHERE owner = $1`
	args := []any{owner}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing evidence entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e             Entry
			citationsJSON []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Owner, &e.Query, &e.ModelUsed, &e.SimilarityThreshold, &e.UnsupportedPolicy,
			&citationsJSON, &e.RetrievalCount, &e.Grounded, &e.Refused, &e.Response, &e.ProcessingMS, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning evidence entry: %w", err)
		}
		if err := json.Unmarshal(citationsJSON, &e.Citations); err != nil {
			return nil, fmt.Errorf("parsing citations for entry %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing evidence entries: %w", err)
	}
	return entries, nil
}
