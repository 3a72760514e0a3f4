package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/verityops/verity/internal/answer"
	"github.com/verityops/verity/internal/evidence"
	"github.com/verityops/verity/internal/retrieval"
)

// AskRequest describes one grounded query.
type AskRequest struct {
	Owner string
	Query string

	// DocTypes restricts retrieval to the given document types; empty means
	// all types.
	DocTypes []string

	// TopK is the maximum number of citations; 0 selects the configured
	// default.
	TopK int

	// SimilarityThreshold overrides the configured minimum score when
	// non-nil. A pointer because 0 is a meaningful threshold.
	SimilarityThreshold *float64

	// Policy overrides the configured unsupported-query policy when set.
	Policy answer.Policy

	// IncludeResponse requests generated text; false returns citations and
	// the policy verdict only, with no LLM call.
	IncludeResponse bool
}

// AskResult is the complete outcome of one query.
type AskResult struct {
	Response      *string
	Grounded      bool
	Refused       bool
	RefusalReason string
	Citations     []retrieval.Citation
	ModelUsed     string
	ProcessingMS  int64

	// EvidenceRecorded is false when the best-effort audit write failed.
	EvidenceRecorded bool
}

// Ask runs the query pipeline: embed the query, retrieve citations, apply
// the grounding policy, and append the evidence entry.
//
// The evidence write is best-effort; its failure is reported through
// EvidenceRecorded, never as an error.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if strings.TrimSpace(req.Owner) == "" {
		return nil, ErrEmptyOwner
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	threshold := s.defaults.SimilarityThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}
	policy := req.Policy
	if policy == "" {
		policy = s.defaults.Policy
	}

	ctx, span := s.tracer.Start(ctx, "service.Ask")
	defer span.End()
	span.SetAttributes(
		attribute.String("query.owner", req.Owner),
		attribute.String("query.policy", string(policy)),
		attribute.Float64("query.threshold", threshold),
		attribute.Int("query.top_k", topK),
	)

	started := time.Now()

	embedCtx, embedSpan := s.tracer.Start(ctx, "service.Ask.embed")
	vectors, err := s.embedder.Embed(embedCtx, []string{req.Query})
	embedSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors, want 1", len(vectors))
	}

	retrieveCtx, retrieveSpan := s.tracer.Start(ctx, "service.Ask.retrieve")
	citations, err := s.retriever.Retrieve(retrieveCtx, vectors[0], retrieval.Scope{
		Owner:               req.Owner,
		DocTypes:            req.DocTypes,
		TopK:                topK,
		SimilarityThreshold: threshold,
	})
	retrieveSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retrieving citations: %w", err)
	}

	generateCtx, generateSpan := s.tracer.Start(ctx, "service.Ask.generate")
	result, err := s.generator.Generate(generateCtx, answer.Request{
		Query:           req.Query,
		Citations:       citations,
		Policy:          policy,
		IncludeResponse: req.IncludeResponse,
	})
	generateSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generating response: %w", err)
	}

	processingMS := time.Since(started).Milliseconds()
	span.SetAttributes(
		attribute.Bool("query.grounded", result.Grounded),
		attribute.Bool("query.refused", result.Refused),
		attribute.Int("query.citations", len(citations)),
	)

	recorded := s.recorder.Record(ctx, &evidence.Entry{
		Owner:               req.Owner,
		Query:               req.Query,
		ModelUsed:           result.ModelUsed,
		SimilarityThreshold: threshold,
		UnsupportedPolicy:   string(policy),
		Citations:           citations,
		RetrievalCount:      len(citations),
		Grounded:            result.Grounded,
		Refused:             result.Refused,
		Response:            result.Response,
		ProcessingMS:        processingMS,
	})

	s.logger.Info("answered query",
		"owner", req.Owner, "grounded", result.Grounded, "refused", result.Refused,
		"citations", len(citations), "model", result.ModelUsed, "ms", processingMS)

	return &AskResult{
		Response:         result.Response,
		Grounded:         result.Grounded,
		Refused:          result.Refused,
		RefusalReason:    result.RefusalReason,
		Citations:        citations,
		ModelUsed:        result.ModelUsed,
		ProcessingMS:     processingMS,
		EvidenceRecorded: recorded,
	}, nil
}
