package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/verityops/verity/internal/chunk"
	"github.com/verityops/verity/internal/document"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	Owner    string
	Title    string
	Content  string
	DocType  string
	Metadata map[string]string
}

// validate checks the request before any I/O.
func (r IngestRequest) validate() error {
	if strings.TrimSpace(r.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if !document.ValidType(r.DocType) {
		return fmt.Errorf("%w: %q", ErrInvalidDocType, r.DocType)
	}
	return nil
}

// Ingest runs the full ingestion pipeline: create the document, chunk the
// content, embed every chunk, and commit chunks plus approval atomically.
//
// On a chunking or embedding failure the document is reset to pending so a
// re-ingest can retry; it never becomes approved with a partial chunk set.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*document.Document, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "service.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.owner", req.Owner),
		attribute.String("document.type", req.DocType),
	)

	doc, err := s.docs.Create(ctx, req.Owner, req.Title, req.Content, req.DocType, req.Metadata)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("creating document: %w", err)
	}

	if err := s.docs.SetStatus(ctx, doc.ID, document.StatusProcessing, 0); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("marking document processing: %w", err)
	}

	texts, err := chunk.Split(req.Content, chunk.Config{
		Size:    s.defaults.ChunkSize,
		Overlap: s.defaults.ChunkOverlap,
	})
	if err != nil {
		span.RecordError(err)
		s.resetToPending(ctx, doc)
		return nil, fmt.Errorf("chunking document: %w", err)
	}

	embedCtx, embedSpan := s.tracer.Start(ctx, "service.Ingest.embed")
	vectors, err := s.embedder.Embed(embedCtx, texts)
	embedSpan.End()
	if err != nil {
		span.RecordError(err)
		s.resetToPending(ctx, doc)
		return nil, fmt.Errorf("embedding %d chunks: %w", len(texts), err)
	}

	chunks := make([]document.NewChunk, len(texts))
	for i, text := range texts {
		chunks[i] = document.NewChunk{
			Index:      i,
			Text:       text,
			Embedding:  vectors[i],
			TokenCount: chunk.EstimateTokens(text),
		}
	}

	if err := s.docs.CommitChunks(ctx, doc.ID, chunks); err != nil {
		span.RecordError(err)
		s.resetToPending(ctx, doc)
		return nil, fmt.Errorf("committing chunks: %w", err)
	}

	doc.Status = document.StatusApproved
	doc.ChunkCount = len(chunks)
	span.SetAttributes(attribute.Int("document.chunks", len(chunks)))

	s.logger.Info("ingested document",
		"id", doc.ID, "owner", req.Owner, "doc_type", req.DocType, "chunks", len(chunks))
	return doc, nil
}

// resetToPending returns a failed document to the pending state so the next
// ingest attempt starts clean. Best-effort: the original failure is what the
// caller sees.
func (s *Service) resetToPending(ctx context.Context, doc *document.Document) {
	if err := s.docs.SetStatus(ctx, doc.ID, document.StatusPending, 0); err != nil {
		s.logger.Warn("failed to reset document status after error",
			"id", doc.ID, "error", err)
	}
}
