package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API keys, depending on the selected backends.
	// GEMINI_API_KEY is read directly by the genai client; OPENAI_API_KEY by
	// the openai client. Only their presence is checked here, and only for
	// the Gemini embedder: the hash backend runs without any key, and a
	// missing generation key degrades responses at generation time instead
	// of blocking ingest-free commands.
	if c.EmbedderBackend == EmbedderGemini && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}
	if c.FallbackModel != "" && os.Getenv("OPENAI_API_KEY") == "" {
		slog.Warn("OPENAI_API_KEY not set, fallback model will be unavailable",
			"fallback_model", c.FallbackModel)
	}

	// 2. Generation configuration.
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// 3. Embedding configuration.
	if !slices.Contains([]string{EmbedderGemini, EmbedderHash}, c.EmbedderBackend) {
		return fmt.Errorf("%w: %q, must be %q or %q",
			ErrInvalidEmbedderBackend, c.EmbedderBackend, EmbedderGemini, EmbedderHash)
	}
	if c.EmbedderBackend == EmbedderGemini && c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 4. Retrieval configuration.
	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f",
			ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}
	validPolicies := []string{"refuse", "flag", "allow"}
	if !slices.Contains(validPolicies, c.UnsupportedPolicy) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidUnsupportedPolicy, c.UnsupportedPolicy, validPolicies)
	}

	// 5. Chunking configuration.
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	// 6. PostgreSQL configuration.
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "verity_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are deprecated and MITM-prone.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
