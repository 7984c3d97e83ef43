// Package index provides the retrieval side of the pipeline: text
// embedders over the OpenAI and Gemini APIs, and a brute-force in-memory
// vector index with cosine top-k search. It deliberately implements no
// approximate-nearest-neighbor structure; the corpora here are a few
// hundred nodes per document.
package index

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tenqlab/filingqa/internal/ports"
)

// DefaultOpenAIEmbeddingModel is used when no embedding model is
// configured.
const DefaultOpenAIEmbeddingModel = "text-embedding-ada-002"

// OpenAIEmbedder embeds text through OpenAI's embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

var _ ports.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedderConfig configures an OpenAIEmbedder.
type OpenAIEmbedderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewOpenAIEmbedder creates an embedder for the configured model.
func NewOpenAIEmbedder(config OpenAIEmbedderConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is required")
	}

	model := config.Model
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// EmbedTexts embeds a batch of texts, one vector per input in order.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float64, len(resp.Data))
	for i, row := range resp.Data {
		vec := make([]float64, len(row.Embedding))
		for j, v := range row.Embedding {
			vec[j] = float64(v)
		}
		Normalize(vec)
		out[i] = vec
	}
	return out, nil
}

// Model returns the embedding model identifier.
func (e *OpenAIEmbedder) Model() string { return e.model }
