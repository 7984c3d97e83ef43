package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-sonnet-20241022"

func init() {
	registerProvider("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM over Anthropic's Messages API.
type anthropicProvider struct {
	client  anthropic.Client
	model   string
	counter *TokenCounter
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	model := config.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &anthropicProvider{
		client:  anthropic.NewClient(opts...),
		model:   model,
		counter: NewTokenCounter(),
	}, nil
}

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(optString(opts, "model", p.model)),
		MaxTokens: int64(optInt(opts, "max_tokens", defaultMaxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if temp, ok := optFloat(opts, "temperature"); ok {
		params.Temperature = anthropic.Float(temp)
	}
	if system := optString(opts, "system", ""); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	response := text.String()
	if response == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.counter.Pick(int(message.Usage.InputTokens), prompt)
	tokensOut := p.counter.Pick(int(message.Usage.OutputTokens), response)

	return response, tokensIn, tokensOut, nil
}

func (p *anthropicProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: "anthropic", Kind: KindTimeout, Err: err}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return newProviderError("anthropic", apiErr.StatusCode, err)
	}

	return &ProviderError{Provider: "anthropic", Kind: KindUnknown, Err: err}
}

func (p *anthropicProvider) GetModel() string { return p.model }
