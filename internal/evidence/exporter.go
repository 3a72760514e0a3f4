package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/verityops/verity/internal/document"
)

// DocumentLister provides the document side of an export.
// *document.Store satisfies it.
type DocumentLister interface {
	List(ctx context.Context, owner string, opts document.ListOptions) ([]*document.Document, error)
}

// EntryLister provides the query-log side of an export. *Store satisfies it.
type EntryLister interface {
	ListPeriod(ctx context.Context, owner string, from, to *time.Time) ([]*Entry, error)
}

// DocumentRecord is the per-document slice of an evidence pack. The full
// content travels with the pack so it stands alone as a compliance artifact.
type DocumentRecord struct {
	ID         uuid.UUID         `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	DocType    string            `json:"doc_type"`
	Status     document.Status   `json:"status"`
	ChunkCount int               `json:"chunk_count"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Summary aggregates the pack's contents.
type Summary struct {
	TotalDocuments    int `json:"total_documents"`
	ApprovedDocuments int `json:"approved_documents"`
	TotalQueries      int `json:"total_queries"`

	// Percentages carry one decimal place; 0.0 when there are no queries.
	GroundedPercent float64 `json:"grounded_percent"`
	RefusedPercent  float64 `json:"refused_percent"`

	// AvgProcessingMS is rounded to the nearest millisecond.
	AvgProcessingMS int64 `json:"avg_processing_ms"`

	DocTypes []string `json:"doc_types"`

	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// Pack is a complete compliance bundle: every document plus every query log
// entry in the period, with summary statistics.
type Pack struct {
	ExportID   uuid.UUID        `json:"export_id"`
	ExportedAt time.Time        `json:"exported_at"`
	ExportedBy string           `json:"exported_by"`
	Documents  []DocumentRecord `json:"documents"`
	Queries    []*Entry         `json:"queries"`
	Summary    Summary          `json:"summary"`
}

// Exporter assembles evidence packs. Export is a pure read: running it twice
// over unchanged data yields identical documents, queries, and summary stats.
type Exporter struct {
	documents DocumentLister
	entries   EntryLister
	logger    *slog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(documents DocumentLister, entries EntryLister, logger *slog.Logger) (*Exporter, error) {
	if documents == nil || entries == nil {
		return nil, fmt.Errorf("document and entry listers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{documents: documents, entries: entries, logger: logger}, nil
}

// exportPageSize bounds each document listing round trip.
const exportPageSize = 200

// Export builds a pack for the owner's corpus and the query log within
// [from, to]. Nil bounds leave that side of the period open.
func (x *Exporter) Export(ctx context.Context, owner, actor string, from, to *time.Time) (*Pack, error) {
	docs, err := x.listAllDocuments(ctx, owner)
	if err != nil {
		return nil, err
	}

	entries, err := x.entries.ListPeriod(ctx, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing evidence entries: %w", err)
	}
	if entries == nil {
		entries = []*Entry{}
	}

	records := make([]DocumentRecord, 0, len(docs))
	approved := 0
	typeSet := make(map[string]struct{})
	for _, d := range docs {
		if d.Status == document.StatusApproved {
			approved++
		}
		typeSet[d.DocType] = struct{}{}
		records = append(records, DocumentRecord{
			ID:         d.ID,
			Title:      d.Title,
			Content:    d.Content,
			DocType:    d.DocType,
			Status:     d.Status,
			ChunkCount: d.ChunkCount,
			Metadata:   d.Metadata,
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		})
	}

	docTypes := make([]string, 0, len(typeSet))
	for t := range typeSet {
		docTypes = append(docTypes, t)
	}
	sort.Strings(docTypes)

	grounded, refused := 0, 0
	var totalMS int64
	for _, e := range entries {
		if e.Grounded {
			grounded++
		}
		if e.Refused {
			refused++
		}
		totalMS += e.ProcessingMS
	}

	summary := Summary{
		TotalDocuments:    len(records),
		ApprovedDocuments: approved,
		TotalQueries:      len(entries),
		DocTypes:          docTypes,
		PeriodStart:       from,
		PeriodEnd:         to,
	}
	if n := len(entries); n > 0 {
		summary.GroundedPercent = round1(float64(grounded) / float64(n) * 100)
		summary.RefusedPercent = round1(float64(refused) / float64(n) * 100)
		summary.AvgProcessingMS = int64(math.Round(float64(totalMS) / float64(n)))
	}

	pack := &Pack{
		ExportID:   uuid.New(),
		ExportedAt: time.Now().UTC(),
		ExportedBy: actor,
		Documents:  records,
		Queries:    entries,
		Summary:    summary,
	}

	x.logger.Info("exported evidence pack",
		"export_id", pack.ExportID, "owner", owner, "actor", actor,
		"documents", len(records), "queries", len(entries))
	return pack, nil
}

// listAllDocuments pages through every document of the owner, all statuses.
func (x *Exporter) listAllDocuments(ctx context.Context, owner string) ([]*document.Document, error) {
	var all []*document.Document
	for page := 1; ; page++ {
		docs, err := x.documents.List(ctx, owner, document.ListOptions{Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		all = append(all, docs...)
		if len(docs) < exportPageSize {
			return all, nil
		}
	}
}

// round1 rounds to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
