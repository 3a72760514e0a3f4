// Package service orchestrates the ingestion, query, and export pipelines.
//
// Service owns no business rules of its own: chunking, embedding, retrieval,
// policy, and audit each live in their package, and Service sequences them.
// Dependencies are consumed through interfaces defined here, so the pipeline
// is testable without a database or live providers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/verityops/verity/internal/answer"
	"github.com/verityops/verity/internal/document"
	"github.com/verityops/verity/internal/embed"
	"github.com/verityops/verity/internal/evidence"
	"github.com/verityops/verity/internal/retrieval"
)

// Validation sentinel errors. All are returned before any I/O happens.
var (
	// ErrEmptyOwner indicates a request without an owner identity.
	ErrEmptyOwner = errors.New("owner is required")

	// ErrEmptyQuery indicates an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("query is required")

	// ErrEmptyActor indicates an export without an actor identity.
	ErrEmptyActor = errors.New("actor is required")

	// ErrEmptyTitle indicates a document without a title.
	ErrEmptyTitle = errors.New("title is required")

	// ErrEmptyContent indicates a document without content.
	ErrEmptyContent = errors.New("content is required")

	// ErrInvalidDocType indicates an unrecognized document type.
	ErrInvalidDocType = errors.New("invalid document type")
)

// DocumentStore is the document persistence surface Service needs.
// *document.Store satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, owner, title, content, docType string, metadata map[string]string) (*document.Document, error)
	SetStatus(ctx context.Context, id uuid.UUID, status document.Status, chunkCount int) error
	CommitChunks(ctx context.Context, docID uuid.UUID, chunks []document.NewChunk) error
	List(ctx context.Context, owner string, opts document.ListOptions) ([]*document.Document, error)
	Get(ctx context.Context, id uuid.UUID, owner string) (*document.Document, error)
	Archive(ctx context.Context, id uuid.UUID, owner string) (bool, error)
}

// Retriever scores and ranks chunks for a query vector.
// *retrieval.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, queryVec []float32, scope retrieval.Scope) ([]retrieval.Citation, error)
}

// Generator applies the grounding policy and produces response text.
// *answer.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, req answer.Request) (answer.Result, error)
}

// EvidenceRecorder writes audit entries best-effort.
// *evidence.Recorder satisfies it.
type EvidenceRecorder interface {
	Record(ctx context.Context, e *evidence.Entry) bool
}

// PackExporter assembles compliance bundles. *evidence.Exporter satisfies it.
type PackExporter interface {
	Export(ctx context.Context, owner, actor string, from, to *time.Time) (*evidence.Pack, error)
}

// Defaults carries the configured per-query defaults, applied when a request
// leaves the corresponding field zero.
type Defaults struct {
	SimilarityThreshold float64
	TopK                int
	Policy              answer.Policy
	ChunkSize           int
	ChunkOverlap        int
}

// Service is the orchestration layer behind every CLI command.
type Service struct {
	docs      DocumentStore
	embedder  embed.Embedder
	retriever Retriever
	generator Generator
	recorder  EvidenceRecorder
	exporter  PackExporter
	defaults  Defaults
	tracer    trace.Tracer
	logger    *slog.Logger
}

// New creates a Service. All dependencies are required.
func New(
	docs DocumentStore,
	embedder embed.Embedder,
	retriever Retriever,
	generator Generator,
	recorder EvidenceRecorder,
	exporter PackExporter,
	defaults Defaults,
	logger *slog.Logger,
) (*Service, error) {
	if docs == nil || embedder == nil || retriever == nil || generator == nil || recorder == nil || exporter == nil {
		return nil, fmt.Errorf("all service dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:      docs,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		recorder:  recorder,
		exporter:  exporter,
		defaults:  defaults,
		tracer:    otel.Tracer("verity/service"),
		logger:    logger,
	}, nil
}

// Documents exposes read operations for the docs CLI commands.
func (s *Service) Documents() DocumentStore { return s.docs }
