package index

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/tenqlab/filingqa/internal/ports"
)

// DefaultGoogleEmbeddingModel is used when no embedding model is
// configured.
const DefaultGoogleEmbeddingModel = "text-embedding-004"

// GoogleEmbedder embeds text through the Gemini embeddings API.
type GoogleEmbedder struct {
	client *genai.Client
	model  string
}

var _ ports.Embedder = (*GoogleEmbedder)(nil)

// NewGoogleEmbedder creates a Gemini-backed embedder.
func NewGoogleEmbedder(apiKey, model string) (*GoogleEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google embedder: API key is required")
	}
	if model == "" {
		model = DefaultGoogleEmbeddingModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google embedder: %w", err)
	}

	return &GoogleEmbedder{client: client, model: model}, nil
}

// EmbedTexts embeds a batch of texts, one vector per input in order.
func (e *GoogleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("google embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google embeddings: expected %d vectors, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		Normalize(vec)
		out[i] = vec
	}
	return out, nil
}

// Model returns the embedding model identifier.
func (e *GoogleEmbedder) Model() string { return e.model }
