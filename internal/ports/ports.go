// Package ports defines the interfaces between the evaluation core and the
// external boundaries it consumes: LLM providers, embedders, the answer
// engine, the scoring metric, and operational concerns like throttling and
// metrics. The core depends on these interfaces only, which keeps the batch
// runner testable without network access.
package ports

import (
	"context"
	"time"

	"github.com/tenqlab/filingqa/internal/domain"
)

// LLMClient is the completion boundary. Implementations handle
// provider-specific authentication, request formatting, and response
// parsing, plus operational concerns like rate limiting and retries.
type LLMClient interface {
	// Complete sends a prompt and returns the generated text.
	// The options map carries provider-tunable parameters; common keys are
	// "temperature" (float64), "max_tokens" (int), and "system" (string).
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens approximates the token count of text, for cost
	// estimation before a request is made.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier this client targets.
	GetModel() string
}

// Embedder turns text into vectors for similarity retrieval.
type Embedder interface {
	// EmbedTexts embeds a batch of texts, returning one vector per input
	// in the same order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)

	// Model returns the embedding model identifier.
	Model() string
}

// AnswerEngine is the answer boundary: given a question about the engine's
// document, it retrieves evidence and generates an answer. Treated by the
// core as a possibly slow, opaque call.
type AnswerEngine interface {
	// Answer responds to queryText with a generated answer and the ordered
	// retrieval context that grounded it. An empty query fails fast with
	// domain.ErrEmptyQuery before any external call.
	Answer(ctx context.Context, queryText string) (domain.Answer, error)

	// DocumentID identifies the document this engine answers over.
	DocumentID() string
}

// Scorer is the score boundary: it judges a produced answer against the
// expected answer and returns a ledger entry for the record.
type Scorer interface {
	// Name identifies the metric, and names the ledger and snapshot files
	// the runner writes for it.
	Name() string

	// Score evaluates how well answer satisfies record.ExpectedAnswer.
	// The returned entry is complete except that implementations may leave
	// optional fields (Reason, Cost, Model) zero.
	Score(ctx context.Context, record domain.QueryRecord, answer domain.Answer) (domain.LedgerEntry, error)
}

// Throttle paces calls to an external boundary. The batch runner waits on
// it between scoring calls; tests inject an unlimited implementation so
// loops run without real delays.
type Throttle interface {
	// Wait blocks until the next call is permitted or ctx is done.
	Wait(ctx context.Context) error
}

// MetricsCollector records operational metrics. Implementations integrate
// with a monitoring backend such as Prometheus.
type MetricsCollector interface {
	// RecordLatency records the duration of an operation.
	RecordLatency(operation string, d time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric by value.
	RecordCounter(metric string, value float64, labels map[string]string)
}
