package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenqlab/filingqa/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
llm:
  type: anthropic
  model: claude-3-5-sonnet-20241022
embedding:
  type: openai
judge:
  threshold: 0.8
retrieval:
  top_k: 3
paths:
  dataset: data/queries.json
  documents: data/filings
throttle:
  requests_per_minute: 30
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Type)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.LLM.Model)
	assert.Equal(t, "openai", cfg.Embedding.Type)
	assert.Equal(t, 0.8, cfg.Judge.Threshold)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 30, cfg.Throttle.RequestsPerMinute)
	assert.Equal(t, "cache", cfg.Paths.CacheDir, "omitted paths keep defaults")
	assert.Equal(t, "results", cfg.Paths.ResultsDir)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
paths:
  dataset: data/queries.json
  documents: data/filings
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Type)
	assert.Equal(t, "openai", cfg.Embedding.Type)
	assert.Equal(t, 1.0, cfg.Judge.Threshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		var storageErr *domain.StorageError
		require.ErrorAs(t, err, &storageErr)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "llm: [unclosed"))
		var storageErr *domain.StorageError
		require.ErrorAs(t, err, &storageErr)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
llm:
  type: replicate
paths:
  dataset: d.json
  documents: docs
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("missing dataset path", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
paths:
  documents: docs
`))
		require.Error(t, err)
	})
}

func TestThrottleInterval(t *testing.T) {
	assert.Equal(t, time.Second, ThrottleConfig{}.Interval(), "unset pacing defaults to one call per second")
	assert.Equal(t, 500*time.Millisecond, ThrottleConfig{RequestsPerMinute: 120}.Interval())
}

func TestAPIKeyFor(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-test")
	t.Setenv(EnvAnthropicKey, "")

	key, err := APIKeyFor("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	_, err = APIKeyFor("anthropic")
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvAnthropicKey, cfgErr.Key)

	_, err = APIKeyFor("replicate")
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()

	// Missing dotenv file is fine.
	require.NoError(t, LoadEnv(filepath.Join(dir, ".env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FILINGQA_TEST_KEY=from-dotenv\n"), 0o600))
	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("FILINGQA_TEST_KEY"))
	t.Cleanup(func() { os.Unsetenv("FILINGQA_TEST_KEY") })
}
