package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// DefaultGoogleModel is used when no model is configured.
const DefaultGoogleModel = "gemini-2.0-flash"

func init() {
	registerProvider("google", newGoogleProvider)
}

// googleProvider implements CoreLLM over Google's Gemini API.
type googleProvider struct {
	client  *genai.Client
	model   string
	counter *TokenCounter
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	model := config.Model
	if model == "" {
		model = DefaultGoogleModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &googleProvider{client: client, model: model, counter: NewTokenCounter()}, nil
}

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	finalPrompt := prompt
	// Gemini has no separate system role; prepend system instructions.
	if system := optString(opts, "system", ""); system != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", system, prompt)
	}

	genConfig := &genai.GenerateContentConfig{}
	if temp, ok := optFloat(opts, "temperature"); ok {
		genConfig.Temperature = genai.Ptr(float32(temp))
	}
	if maxTokens := optInt(opts, "max_tokens", defaultMaxTokens); maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens) // #nosec G115 - bounded by config validation
	}

	contents := []*genai.Content{genai.NewContentFromText(finalPrompt, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, optString(opts, "model", p.model), contents, genConfig)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.counter.Estimate(finalPrompt)
	tokensOut := p.counter.Estimate(content)
	if usage := resp.UsageMetadata; usage != nil {
		tokensIn = p.counter.Pick(int(usage.PromptTokenCount), finalPrompt)
		tokensOut = p.counter.Pick(int(usage.CandidatesTokenCount), content)
	}

	return content, tokensIn, tokensOut, nil
}

func (p *googleProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: "google", Kind: KindTimeout, Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return newProviderError("google", apiErr.Code, err)
	}

	return &ProviderError{Provider: "google", Kind: KindUnknown, Err: err}
}

func (p *googleProvider) GetModel() string { return p.model }
