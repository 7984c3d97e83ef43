package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const defaultMaxTokens = 1024

func init() {
	registerProvider("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM over OpenAI's chat completion API.
type openAIProvider struct {
	client  *openai.Client
	model   string
	counter *TokenCounter
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	model := config.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		counter: NewTokenCounter(),
	}, nil
}

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	req := openai.ChatCompletionRequest{
		Model:     optString(opts, "model", p.model),
		MaxTokens: optInt(opts, "max_tokens", defaultMaxTokens),
		Messages:  p.buildMessages(prompt, optString(opts, "system", "")),
	}
	if temp, ok := optFloat(opts, "temperature"); ok {
		req.Temperature = float32(temp)
	}
	if _, ok := opts["json_response"]; ok {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	tokensIn := p.counter.Pick(resp.Usage.PromptTokens, prompt)
	tokensOut := p.counter.Pick(resp.Usage.CompletionTokens, content)

	return content, tokensIn, tokensOut, nil
}

func (p *openAIProvider) buildMessages(prompt, system string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}

func (p *openAIProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: "openai", Kind: KindTimeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newProviderError("openai", apiErr.HTTPStatusCode, err)
	}

	return &ProviderError{Provider: "openai", Kind: KindUnknown, Err: err}
}

func (p *openAIProvider) GetModel() string { return p.model }
