package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Remote provider limits.
const (
	// MaxBatchSize is the maximum number of texts sent per EmbedContent call.
	MaxBatchSize = 100

	// DefaultTimeout bounds a single embedding round trip.
	DefaultTimeout = 30 * time.Second

	// maxConcurrentBatches caps parallel in-flight embedding calls.
	maxConcurrentBatches = 4
)

// GoogleConfig configures the remote Gemini embedder.
type GoogleConfig struct {
	// Model is the embedding model identifier, e.g. "gemini-embedding-001".
	Model string

	// Timeout bounds each batch call. Zero selects DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond throttles calls to the provider. Zero disables
	// client-side throttling.
	RequestsPerSecond float64
}

// GoogleEmbedder produces embeddings via the Gemini API.
//
// Inputs are split into batches of at most MaxBatchSize texts. Batches are
// independent and run in parallel; results are reassembled in input order.
// Any batch failure fails the whole call.
type GoogleEmbedder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGoogleEmbedder creates a remote embedder backed by the given genai client.
func NewGoogleEmbedder(client *genai.Client, cfg GoogleConfig, logger *slog.Logger) (*GoogleEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &GoogleEmbedder{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Embed generates one vector per text, preserving input order.
func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))
		g.Go(func() error {
			batch, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			// Disjoint ranges, no synchronization needed.
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedBatch performs a single EmbedContent round trip.
func (e *GoogleEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", ErrProvider, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	start := time.Now()
	resp, err := e.client.Models.EmbedContent(callCtx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(Dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %d texts: %w", ErrProvider, len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProvider, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) != Dimension {
			return nil, fmt.Errorf("%w: embedding %d has wrong dimension", ErrProvider, i)
		}
		vectors[i] = emb.Values
	}

	e.logger.Debug("embedded batch",
		"texts", len(texts),
		"model", e.model,
		"elapsed", time.Since(start),
	)
	return vectors, nil
}
