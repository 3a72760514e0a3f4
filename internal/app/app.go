// Package app provides application initialization and dependency wiring.
//
// App is the container behind every CLI command: it runs migrations, opens
// the database pool, selects the embedder backend, builds the LLM provider
// chain, and assembles the service. Construction is explicit, in dependency
// order, in New; there is no hidden global state.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/verityops/verity/db"
	"github.com/verityops/verity/internal/answer"
	"github.com/verityops/verity/internal/config"
	"github.com/verityops/verity/internal/database"
	"github.com/verityops/verity/internal/document"
	"github.com/verityops/verity/internal/embed"
	"github.com/verityops/verity/internal/evidence"
	"github.com/verityops/verity/internal/observability"
	"github.com/verityops/verity/internal/retrieval"
	"github.com/verityops/verity/internal/service"
)

// App is the core application container.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Documents *document.Store
	Evidence  *evidence.Store
	Service   *service.Service
}

// New constructs a fully wired App. The returned cleanup function flushes
// pending trace spans and closes the database pool; call it on shutdown.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	if cfg == nil {
		return nil, nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	tracingShutdown, err := observability.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up tracing: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database pool: %w", err)
	}

	cleanup := func() {
		pool.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracer provider", "error", err)
		}
	}

	docs, err := document.NewStore(pool, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating document store: %w", err)
	}

	evidenceStore, err := evidence.NewStore(pool, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating evidence store: %w", err)
	}
	recorder, err := evidence.NewRecorder(evidenceStore, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating evidence recorder: %w", err)
	}
	exporter, err := evidence.NewExporter(docs, evidenceStore, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating evidence exporter: %w", err)
	}

	embedder, genaiClient, err := buildEmbedder(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	generator, err := buildGenerator(ctx, cfg, genaiClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	policy, err := answer.ParsePolicy(cfg.UnsupportedPolicy)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc, err := service.New(
		docs,
		embedder,
		retrieval.New(docs, logger),
		generator,
		recorder,
		exporter,
		service.Defaults{
			SimilarityThreshold: cfg.SimilarityThreshold,
			TopK:                cfg.TopK,
			Policy:              policy,
			ChunkSize:           cfg.ChunkSize,
			ChunkOverlap:        cfg.ChunkOverlap,
		},
		logger,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Documents: docs,
		Evidence:  evidenceStore,
		Service:   svc,
	}, cleanup, nil
}

// buildEmbedder selects the embedding backend. The genai client is shared
// with the generation provider, so it is returned alongside; nil when the
// hash backend is selected and no generation client has been created yet.
func buildEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embed.Embedder, *genai.Client, error) {
	if cfg.EmbedderBackend == config.EmbedderHash {
		logger.Warn("using deterministic hash embedder; similarity scores are not semantic")
		return embed.NewHashEmbedder(), nil, nil
	}

	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embed.NewGoogleEmbedder(client, embed.GoogleConfig{
		Model:             cfg.EmbedderModel,
		Timeout:           time.Duration(cfg.EmbedTimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.EmbedRatePerSec,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, client, nil
}

// buildGenerator assembles the primary/fallback provider chain. Providers
// are built only for credentials that are actually present; with none at all
// (hash embedder, no keys) the generator degrades every generation request
// to the fixed unavailable text instead of blocking startup.
func buildGenerator(ctx context.Context, cfg *config.Config, genaiClient *genai.Client, logger *slog.Logger) (*answer.Generator, error) {
	var providers []answer.Provider

	if genaiClient == nil && os.Getenv("GEMINI_API_KEY") != "" {
		var err error
		genaiClient, err = newGenaiClient(ctx)
		if err != nil {
			return nil, err
		}
	}
	if genaiClient != nil {
		primary, err := answer.NewGoogleProvider(genaiClient, cfg.ModelName, int32(cfg.MaxTokens), cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("creating primary provider: %w", err)
		}
		providers = append(providers, primary)
	}

	if cfg.FallbackModel != "" && os.Getenv("OPENAI_API_KEY") != "" {
		secondary, err := answer.NewOpenAIProvider(openai.NewClient(), cfg.FallbackModel, int64(cfg.MaxTokens))
		if err != nil {
			return nil, fmt.Errorf("creating fallback provider: %w", err)
		}
		providers = append(providers, secondary)
	}

	if len(providers) == 0 {
		logger.Warn("no generation credentials configured; responses will be unavailable",
			"hint", "set GEMINI_API_KEY or fallback_model with OPENAI_API_KEY")
		return answer.NewGenerator(answer.Disabled{}, logger), nil
	}

	chain, err := answer.NewChain(providers, 0, logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider chain: %w", err)
	}
	return answer.NewGenerator(chain, logger), nil
}

// newGenaiClient creates a Gemini API client; GEMINI_API_KEY is read from
// the environment.
func newGenaiClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return client, nil
}
