// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.verity/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Generation: LLM provider chain, model names, temperature, max tokens
//   - Embedding: embedder backend and model, request rate limit
//   - Retrieval: similarity threshold, top-K, unsupported-query policy
//   - Chunking: chunk size and overlap
//   - Storage: PostgreSQL connection (see storage.go)
//   - Tracing: OTLP exporter settings (see tracing.go)
//
// Security: sensitive values (the PostgreSQL password) are masked in
// MarshalJSON and never logged in the clear.
//
// Error handling uses sentinel errors so callers can check with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderBackend indicates an unsupported embedder backend.
	ErrInvalidEmbedderBackend = errors.New("invalid embedder backend")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidUnsupportedPolicy indicates an unrecognized unsupported-query policy.
	ErrInvalidUnsupportedPolicy = errors.New("invalid unsupported_policy")

	// ErrInvalidChunking indicates chunk size/overlap values are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Embedder backend identifiers used in Config.EmbedderBackend.
const (
	// EmbedderGemini calls the Gemini embedding API.
	EmbedderGemini = "gemini"

	// EmbedderHash is the deterministic local fallback for development and
	// tests; no API key required.
	EmbedderHash = "hash"
)

const (
	// DefaultGeminiEmbedderModel supports truncation to 768 dimensions via
	// OutputDimensionality, matching the pgvector schema.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultGenerationModel is the primary LLM.
	DefaultGenerationModel = "gemini-2.5-flash"

	// DefaultFallbackModel is the secondary LLM, used when the primary fails.
	DefaultFallbackModel = "gpt-4o-mini"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Generation configuration
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	FallbackModel string  `mapstructure:"fallback_model" json:"fallback_model"` // empty disables the fallback provider
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration
	EmbedderBackend  string  `mapstructure:"embedder_backend" json:"embedder_backend"` // "gemini" (default) or "hash"
	EmbedderModel    string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedRatePerSec  float64 `mapstructure:"embed_rate_per_sec" json:"embed_rate_per_sec"`
	EmbedTimeoutSecs int     `mapstructure:"embed_timeout_secs" json:"embed_timeout_secs"`

	// Retrieval configuration
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"` // [0, 1]
	TopK                int     `mapstructure:"top_k" json:"top_k"`                               // 1..20
	UnsupportedPolicy   string  `mapstructure:"unsupported_policy" json:"unsupported_policy"`     // "refuse", "flag", "allow"

	// Chunking configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Tracing configuration (see tracing.go for the type definition)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".verity")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Generation defaults
	viper.SetDefault("model_name", DefaultGenerationModel)
	viper.SetDefault("fallback_model", DefaultFallbackModel)
	viper.SetDefault("temperature", 0.2)
	viper.SetDefault("max_tokens", 2048)

	// Embedding defaults
	viper.SetDefault("embedder_backend", EmbedderGemini)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embed_rate_per_sec", 5)
	viper.SetDefault("embed_timeout_secs", 30)

	// Retrieval defaults
	viper.SetDefault("similarity_threshold", 0.35)
	viper.SetDefault("top_k", 5)
	viper.SetDefault("unsupported_policy", "refuse")

	// Chunking defaults
	viper.SetDefault("chunk_size", 1600)
	viper.SetDefault("chunk_overlap", 200)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "verity")
	viper.SetDefault("postgres_password", "verity_dev_password")
	viper.SetDefault("postgres_db_name", "verity")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "verity")
}

// bindEnvVariables binds runtime-override environment variables explicitly.
//
// API keys are NOT read via viper: GEMINI_API_KEY is consumed directly by
// the genai client and OPENAI_API_KEY by the openai client. Validate()
// checks for their presence based on the selected backends.
func bindEnvVariables() {
	// Hardcoded key strings cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "VERITY_MODEL_NAME")
	mustBind("fallback_model", "VERITY_FALLBACK_MODEL")
	mustBind("embedder_backend", "VERITY_EMBEDDER_BACKEND")
	mustBind("embedder_model", "VERITY_EMBEDDER_MODEL")
	mustBind("similarity_threshold", "VERITY_SIMILARITY_THRESHOLD")
	mustBind("top_k", "VERITY_TOP_K")
	mustBind("unsupported_policy", "VERITY_UNSUPPORTED_POLICY")
	mustBind("tracing.enabled", "VERITY_TRACING_ENABLED")
	mustBind("tracing.endpoint", "VERITY_TRACING_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 bytes or
// fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
