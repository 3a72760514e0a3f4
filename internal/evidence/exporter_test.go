package evidence

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/verityops/verity/internal/document"
)

type fakeDocumentLister struct {
	docs []*document.Document
	err  error
}

func (f *fakeDocumentLister) List(_ context.Context, _ string, opts document.ListOptions) ([]*document.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(f.docs) {
		return nil, nil
	}
	end := min(start+opts.PageSize, len(f.docs))
	return f.docs[start:end], nil
}

type fakeEntryLister struct {
	entries []*Entry
	err     error
}

func (f *fakeEntryLister) ListPeriod(context.Context, string, *time.Time, *time.Time) ([]*Entry, error) {
	return f.entries, f.err
}

func doc(title, docType string, status document.Status) *document.Document {
	return &document.Document{Title: title, DocType: docType, Status: status}
}

func entry(grounded, refused bool, processingMS int64) *Entry {
	return &Entry{Grounded: grounded, Refused: refused, ProcessingMS: processingMS}
}

func TestExportSummaryStats(t *testing.T) {
	docs := &fakeDocumentLister{docs: []*document.Document{
		doc("Fire SOP", "sop", document.StatusApproved),
		doc("HR Policy", "policy", document.StatusApproved),
		doc("Old Manual", "manual", document.StatusArchived),
		doc("Pending Audit", "sop", document.StatusPending),
	}}
	entries := &fakeEntryLister{entries: []*Entry{
		entry(true, false, 100),
		entry(true, false, 200),
		entry(false, true, 301),
	}}

	x, err := NewExporter(docs, entries, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	pack, err := x.Export(context.Background(), "acme", "auditor@acme", nil, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	s := pack.Summary
	if s.TotalDocuments != 4 {
		t.Errorf("TotalDocuments = %d, want 4", s.TotalDocuments)
	}
	if s.ApprovedDocuments != 2 {
		t.Errorf("ApprovedDocuments = %d, want 2", s.ApprovedDocuments)
	}
	if s.TotalQueries != 3 {
		t.Errorf("TotalQueries = %d, want 3", s.TotalQueries)
	}
	if s.GroundedPercent != 66.7 {
		t.Errorf("GroundedPercent = %v, want 66.7", s.GroundedPercent)
	}
	if s.RefusedPercent != 33.3 {
		t.Errorf("RefusedPercent = %v, want 33.3", s.RefusedPercent)
	}
	if s.AvgProcessingMS != 200 {
		t.Errorf("AvgProcessingMS = %d, want 200", s.AvgProcessingMS)
	}
	if want := []string{"manual", "policy", "sop"}; !reflect.DeepEqual(s.DocTypes, want) {
		t.Errorf("DocTypes = %v, want %v", s.DocTypes, want)
	}
	if pack.ExportedBy != "auditor@acme" {
		t.Errorf("ExportedBy = %q", pack.ExportedBy)
	}
}

func TestExportZeroQueries(t *testing.T) {
	x, err := NewExporter(
		&fakeDocumentLister{docs: []*document.Document{doc("Fire SOP", "sop", document.StatusApproved)}},
		&fakeEntryLister{},
		nil,
	)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	pack, err := x.Export(context.Background(), "acme", "auditor", nil, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	s := pack.Summary
	if s.TotalQueries != 0 {
		t.Errorf("TotalQueries = %d, want 0", s.TotalQueries)
	}
	if s.GroundedPercent != 0.0 || s.RefusedPercent != 0.0 {
		t.Errorf("percentages = (%v, %v), want (0.0, 0.0)", s.GroundedPercent, s.RefusedPercent)
	}
	if s.AvgProcessingMS != 0 {
		t.Errorf("AvgProcessingMS = %d, want 0", s.AvgProcessingMS)
	}
	if pack.Queries == nil || len(pack.Queries) != 0 {
		t.Errorf("Queries = %v, want empty non-nil slice", pack.Queries)
	}
}

func TestExportDeterministicForIdenticalInputs(t *testing.T) {
	docs := &fakeDocumentLister{docs: []*document.Document{
		doc("Fire SOP", "sop", document.StatusApproved),
		doc("HR Policy", "policy", document.StatusApproved),
	}}
	entries := &fakeEntryLister{entries: []*Entry{
		entry(true, false, 150),
		entry(false, false, 250),
	}}

	x, err := NewExporter(docs, entries, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	first, err := x.Export(context.Background(), "acme", "auditor", nil, nil)
	if err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	second, err := x.Export(context.Background(), "acme", "auditor", nil, nil)
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}

	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Errorf("summaries differ:\n%+v\n%+v", first.Summary, second.Summary)
	}
	if !reflect.DeepEqual(first.Documents, second.Documents) {
		t.Error("document lists differ between identical exports")
	}
	if first.ExportID == second.ExportID {
		t.Error("ExportID reused across exports")
	}
}

func TestExportPeriodEchoed(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)

	x, err := NewExporter(&fakeDocumentLister{}, &fakeEntryLister{}, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	pack, err := x.Export(context.Background(), "acme", "auditor", &from, &to)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if pack.Summary.PeriodStart == nil || !pack.Summary.PeriodStart.Equal(from) {
		t.Errorf("PeriodStart = %v, want %v", pack.Summary.PeriodStart, from)
	}
	if pack.Summary.PeriodEnd == nil || !pack.Summary.PeriodEnd.Equal(to) {
		t.Errorf("PeriodEnd = %v, want %v", pack.Summary.PeriodEnd, to)
	}
}

func TestExportPagesThroughDocuments(t *testing.T) {
	many := make([]*document.Document, exportPageSize+50)
	for i := range many {
		many[i] = doc("Doc", "sop", document.StatusApproved)
	}

	x, err := NewExporter(&fakeDocumentLister{docs: many}, &fakeEntryLister{}, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	pack, err := x.Export(context.Background(), "acme", "auditor", nil, nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(pack.Documents) != len(many) {
		t.Errorf("Documents = %d, want %d", len(pack.Documents), len(many))
	}
}

func TestExportListerFailures(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name string
		docs DocumentLister
		logs EntryLister
	}{
		{"document lister fails", &fakeDocumentLister{err: boom}, &fakeEntryLister{}},
		{"entry lister fails", &fakeDocumentLister{}, &fakeEntryLister{err: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := NewExporter(tt.docs, tt.logs, nil)
			if err != nil {
				t.Fatalf("NewExporter() error = %v", err)
			}
			if _, err := x.Export(context.Background(), "acme", "auditor", nil, nil); !errors.Is(err, boom) {
				t.Fatalf("Export() error = %v, want %v", err, boom)
			}
		})
	}
}
