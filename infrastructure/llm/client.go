// Package llm provides a single client interface over the LLM providers
// the pipeline can use for answer generation and judging: OpenAI,
// Anthropic, and Google Gemini. Providers implement a minimal CoreLLM
// interface and are wrapped by middleware for rate limiting, retries,
// timeouts, and metrics, so the rest of the pipeline never sees
// provider-specific details.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tenqlab/filingqa/internal/ports"
)

// CoreLLM is the minimal surface a provider must implement. Middleware
// wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends prompt to the provider and returns the response text
	// plus input/output token counts. The opts map carries tunables such
	// as "temperature", "max_tokens", and "system".
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Middleware wraps a CoreLLM with cross-cutting behavior. Middleware in a
// chain are applied so the first listed is outermost.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig configures a provider client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the model to request. Empty selects the provider default.
	Model string

	// BaseURL overrides the provider's default endpoint when set.
	BaseURL string

	// Timeout bounds each underlying HTTP request. Zero means none.
	Timeout time.Duration

	// Middleware is applied around the provider, first entry outermost.
	Middleware []Middleware
}

// providerFactory builds a provider from configuration. Providers register
// themselves in init.
type providerFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]providerFactory{}

func registerProvider(name string, factory providerFactory) {
	providerFactories[name] = factory
}

// Client adapts a middleware-wrapped CoreLLM to the ports.LLMClient
// interface used by the answer engine and the judge scorer.
type Client struct {
	core    CoreLLM
	counter *TokenCounter
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient builds a client for the named provider ("openai", "anthropic",
// or "google") with the middleware chain assembled.
func NewClient(provider string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", provider, err)
	}

	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core, counter: NewTokenCounter()}, nil
}

// Complete sends a prompt and returns the generated text, discarding token
// usage.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and returns the text plus token counts.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens approximates the token count of text without calling the
// provider.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.counter.Estimate(text), nil
}

// GetModel returns the model the underlying provider targets.
func (c *Client) GetModel() string { return c.core.GetModel() }

// TokenCounter estimates token counts from text length when the provider
// does not report usage. Roughly four characters per token holds for
// English text.
type TokenCounter struct {
	charsPerToken float64
}

// NewTokenCounter returns a counter with the default ratio.
func NewTokenCounter() *TokenCounter { return &TokenCounter{charsPerToken: 4.0} }

// Estimate returns the approximate token count of text.
func (tc *TokenCounter) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.charsPerToken)
}

// Pick returns the provider-reported count when positive, otherwise an
// estimate from the text.
func (tc *TokenCounter) Pick(reported int, text string) int {
	if reported > 0 {
		return reported
	}
	return tc.Estimate(text)
}

// Option extraction helpers shared by the providers. Invalid or missing
// values fall back to the default.

func optInt(opts map[string]any, key string, def int) int {
	if v, ok := opts[key].(int); ok && v > 0 {
		return v
	}
	return def
}

func optString(opts map[string]any, key, def string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return def
}

func optFloat(opts map[string]any, key string) (float64, bool) {
	v, ok := opts[key].(float64)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}
