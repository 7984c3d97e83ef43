package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/tenqlab/filingqa/internal/ports"
)

// rateLimited paces requests with a token bucket so the pipeline stays
// inside provider rate limits.
type rateLimited struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware enforces a sustained requests-per-second limit with
// the given burst allowance. Callers block until a token is available or
// their context is done.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimited{next: next, limiter: limiter}
	}
}

func (r *rateLimited) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *rateLimited) GetModel() string { return r.next.GetModel() }

// retrying retries transient failures with exponential backoff and jitter.
// Non-retryable provider errors (auth, bad request) fail immediately.
type retrying struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries failed requests up to maxRetries times, backing
// off exponentially from baseDelay and capping at maxDelay.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retrying{next: next, maxRetries: maxRetries, baseDelay: baseDelay, maxDelay: maxDelay}
	}
}

func (r *retrying) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *retrying) delay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded above
	d := time.Duration(float64(r.baseDelay) * float64(int64(1)<<uint(attempt)))

	// Jitter of ±25% spreads retries from concurrent callers.
	// #nosec G404 - weak RNG is fine for jitter
	jitter := time.Duration(rand.Float64() * float64(d) * 0.5)
	d = d + jitter - d/4

	if d > r.maxDelay {
		d = r.maxDelay
	}
	return d
}

func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}

func (r *retrying) GetModel() string { return r.next.GetModel() }

// timed bounds each request with a deadline so a hung provider call cannot
// stall the whole batch.
type timed struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware enforces a per-request timeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timed{next: next, timeout: timeout}
	}
}

func (t *timed) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

func (t *timed) GetModel() string { return t.next.GetModel() }

// measured records request counts, latency, and token usage through a
// MetricsCollector.
type measured struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware records per-request metrics. A nil collector makes the
// middleware a pass-through.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &measured{next: next, collector: collector}
	}
}

func (m *measured) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	if m.collector != nil {
		labels := map[string]string{
			"model":  m.next.GetModel(),
			"status": "success",
		}
		if err != nil {
			labels["status"] = "error"
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				labels["status"] = "timeout"
			}
		}

		m.collector.RecordLatency("llm_request", time.Since(start), labels)
		m.collector.RecordCounter("llm_requests_total", 1, labels)
		if err == nil {
			m.collector.RecordCounter("llm_tokens_in_total", float64(tokensIn), labels)
			m.collector.RecordCounter("llm_tokens_out_total", float64(tokensOut), labels)
		}
	}

	return response, tokensIn, tokensOut, err
}

func (m *measured) GetModel() string { return m.next.GetModel() }
