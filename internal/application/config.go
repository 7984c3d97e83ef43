// Package application wires the evaluation pipeline together: loading the
// run configuration, resolving credentials, and driving the batch loop that
// answers, scores, and records each dataset query.
package application

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tenqlab/filingqa/internal/domain"
)

// validate checks config structs via struct tags.
var validate = validator.New()

// Environment variable names for provider credentials.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvGoogleKey     = "GOOGLE_API_KEY"
	EnvLlamaCloudKey = "LLAMA_CLOUD_API_KEY"
)

// Config is the run configuration for a full evaluation: which providers
// and models to use, where documents and state files live, and how the
// batch loop paces itself.
type Config struct {
	// LLM selects the answer-generation provider and model.
	LLM ProviderConfig `yaml:"llm" validate:"required"`

	// Embedding selects the embedding provider and model.
	Embedding EmbeddingConfig `yaml:"embedding" validate:"required"`

	// Judge configures the LLM-as-judge metric.
	Judge JudgeConfig `yaml:"judge"`

	// Retrieval configures the retrieval stage.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Paths locates the dataset and the pipeline's state directories.
	Paths PathsConfig `yaml:"paths" validate:"required"`

	// Throttle paces scoring calls.
	Throttle ThrottleConfig `yaml:"throttle"`
}

// ProviderConfig names an LLM provider and model.
type ProviderConfig struct {
	// Type selects the provider adapter.
	Type string `yaml:"type" validate:"required,oneof=openai anthropic google"`

	// Model overrides the provider's default model. Optional.
	Model string `yaml:"model"`
}

// EmbeddingConfig names an embedding provider and model.
type EmbeddingConfig struct {
	// Type selects the embedding adapter.
	Type string `yaml:"type" validate:"required,oneof=openai google"`

	// Model overrides the provider's default embedding model. Optional.
	Model string `yaml:"model"`
}

// JudgeConfig configures the judge metric.
type JudgeConfig struct {
	// Threshold is the minimum judge score counted as a pass.
	Threshold float64 `yaml:"threshold" validate:"min=0,max=1"`

	// CostPerMillionTokens prices judge token usage in dollars.
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens" validate:"min=0"`
}

// RetrievalConfig configures the retrieval stage.
type RetrievalConfig struct {
	// TopK is the number of page nodes retrieved per query.
	TopK int `yaml:"top_k" validate:"min=0,max=100"`
}

// PathsConfig locates the dataset and on-disk pipeline state.
type PathsConfig struct {
	// Dataset is the JSON file of query records. Required.
	Dataset string `yaml:"dataset" validate:"required"`

	// Documents is the directory holding source filings. Required.
	Documents string `yaml:"documents" validate:"required"`

	// CacheDir holds answer and node caches.
	CacheDir string `yaml:"cache_dir"`

	// ResultsDir holds ledger files and snapshots.
	ResultsDir string `yaml:"results_dir"`
}

// ThrottleConfig paces scoring calls to stay inside provider rate limits.
type ThrottleConfig struct {
	// RequestsPerMinute caps scoring throughput. Zero means one request
	// per second, matching the historical pacing of the pipeline.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0,max=6000"`
}

// Interval returns the pause between scoring calls.
func (t ThrottleConfig) Interval() time.Duration {
	rpm := t.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return time.Minute / time.Duration(rpm)
}

// DefaultConfig returns the configuration used when a field is omitted from
// the config file.
func DefaultConfig() Config {
	return Config{
		LLM:       ProviderConfig{Type: "openai"},
		Embedding: EmbeddingConfig{Type: "openai"},
		Judge:     JudgeConfig{Threshold: 1.0},
		Retrieval: RetrievalConfig{TopK: 5},
		Paths: PathsConfig{
			CacheDir:   "cache",
			ResultsDir: "results",
		},
	}
}

// LoadConfig reads and validates the YAML config at path. Omitted fields
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return Config{}, domain.NewStorageError(path, "load config", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, domain.NewStorageError(path, "parse config", err)
	}

	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = "cache"
	}
	if cfg.Paths.ResultsDir == "" {
		cfg.Paths.ResultsDir = "results"
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadEnv loads a dotenv file into the process environment when one exists.
// A missing file is not an error; credentials may come from the real
// environment instead.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// APIKeyFor resolves the credential for a provider type from the
// environment. A missing key is a *domain.ConfigError naming the variable
// the operator has to set.
func APIKeyFor(providerType string) (string, error) {
	var envVar string
	switch providerType {
	case "openai":
		envVar = EnvOpenAIKey
	case "anthropic":
		envVar = EnvAnthropicKey
	case "google":
		envVar = EnvGoogleKey
	default:
		return "", domain.NewConfigError(providerType, "unknown provider type")
	}

	key := os.Getenv(envVar)
	if key == "" {
		return "", domain.NewConfigError(envVar, "environment variable is not set")
	}
	return key, nil
}

// ParseAPIKey resolves the parsing service credential.
func ParseAPIKey() (string, error) {
	key := os.Getenv(EnvLlamaCloudKey)
	if key == "" {
		return "", domain.NewConfigError(EnvLlamaCloudKey, "environment variable is not set")
	}
	return key, nil
}
