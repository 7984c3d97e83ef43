package application

import (
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/tenqlab/filingqa/infrastructure/engine"
	"github.com/tenqlab/filingqa/infrastructure/index"
	"github.com/tenqlab/filingqa/infrastructure/llm"
	"github.com/tenqlab/filingqa/infrastructure/parse"
	"github.com/tenqlab/filingqa/infrastructure/scoring"
	"github.com/tenqlab/filingqa/infrastructure/storage"
	"github.com/tenqlab/filingqa/internal/ports"
)

// Pipeline holds the fully wired adapters for one evaluation run over one
// document.
type Pipeline struct {
	Engine  ports.AnswerEngine
	Judge   ports.Scorer
	Metrics ports.MetricsCollector
}

// answerRequestTimeout bounds one LLM request inside the middleware chain.
const answerRequestTimeout = 2 * time.Minute

// BuildLLMClient constructs the provider client named by cfg.LLM with the
// standard middleware chain: metrics outermost, then rate limiting,
// retries, and the per-request timeout.
func BuildLLMClient(cfg Config, collector ports.MetricsCollector) (ports.LLMClient, error) {
	apiKey, err := APIKeyFor(cfg.LLM.Type)
	if err != nil {
		return nil, err
	}

	middleware := []llm.Middleware{
		llm.RateLimitMiddleware(rate.Every(cfg.Throttle.Interval()), 1),
		llm.RetryMiddleware(3, time.Second, 30*time.Second),
		llm.TimeoutMiddleware(answerRequestTimeout),
	}
	if collector != nil {
		middleware = append([]llm.Middleware{llm.MetricsMiddleware(collector)}, middleware...)
	}

	client, err := llm.NewClient(cfg.LLM.Type, llm.ClientConfig{
		APIKey:     apiKey,
		Model:      cfg.LLM.Model,
		Middleware: middleware,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", cfg.LLM.Type, err)
	}
	return client, nil
}

// BuildEmbedder constructs the embedding adapter named by cfg.Embedding.
func BuildEmbedder(cfg Config) (ports.Embedder, error) {
	apiKey, err := APIKeyFor(cfg.Embedding.Type)
	if err != nil {
		return nil, err
	}

	switch cfg.Embedding.Type {
	case "openai":
		return index.NewOpenAIEmbedder(index.OpenAIEmbedderConfig{
			APIKey: apiKey,
			Model:  cfg.Embedding.Model,
		})
	case "google":
		return index.NewGoogleEmbedder(apiKey, cfg.Embedding.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Type)
	}
}

// BuildPipeline wires the answer engine and judge scorer for documentPath.
func BuildPipeline(cfg Config, documentPath string) (*Pipeline, error) {
	collector := llm.NewPrometheusCollector()

	client, err := BuildLLMClient(cfg, collector)
	if err != nil {
		return nil, err
	}

	embedder, err := BuildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	parseKey, err := ParseAPIKey()
	if err != nil {
		return nil, err
	}
	parser, err := parse.NewClient(parse.Config{APIKey: parseKey})
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		DocumentPath: documentPath,
		Parser:       parser,
		Embedder:     embedder,
		LLM:          client,
		NodeCache:    storage.NewNodeCache(filepath.Join(cfg.Paths.CacheDir, "nodes")),
		TopK:         cfg.Retrieval.TopK,
	})
	if err != nil {
		return nil, err
	}

	judgeCfg := scoring.DefaultJudgeConfig()
	judgeCfg.Threshold = cfg.Judge.Threshold
	judgeCfg.CostPerMillionTokens = cfg.Judge.CostPerMillionTokens
	judge, err := scoring.NewJudgeScorer("correctness", judgeCfg, client)
	if err != nil {
		return nil, err
	}

	return &Pipeline{Engine: eng, Judge: judge, Metrics: collector}, nil
}

// BuildScorer returns the scorer for metricName. "correctness" is the LLM
// judge and needs client; "exact" and "fuzzy" are deterministic.
func BuildScorer(metricName string, cfg Config, client ports.LLMClient) (ports.Scorer, error) {
	switch metricName {
	case "correctness":
		judgeCfg := scoring.DefaultJudgeConfig()
		judgeCfg.Threshold = cfg.Judge.Threshold
		judgeCfg.CostPerMillionTokens = cfg.Judge.CostPerMillionTokens
		return scoring.NewJudgeScorer(metricName, judgeCfg, client)
	case "exact":
		return scoring.NewExactScorer(metricName, scoring.DefaultExactConfig())
	case "fuzzy":
		return scoring.NewFuzzyScorer(metricName, scoring.DefaultFuzzyConfig())
	default:
		return nil, fmt.Errorf("unknown metric: %s", metricName)
	}
}

// BuildThrottle returns the pacing limiter for scoring calls.
func BuildThrottle(cfg Config) ports.Throttle {
	return rate.NewLimiter(rate.Every(cfg.Throttle.Interval()), 1)
}
