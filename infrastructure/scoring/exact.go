package scoring

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenqlab/filingqa/internal/domain"
	"github.com/tenqlab/filingqa/internal/ports"
)

var _ ports.Scorer = (*ExactScorer)(nil)

// ExactScorer performs deterministic exact string matching between the
// produced answer and the expected answer. The score is binary: 1.0 on a
// match, 0.0 otherwise.
//
// ExactScorer is stateless and safe for concurrent use.
type ExactScorer struct {
	name   string
	config ExactConfig
	tracer trace.Tracer
}

// ExactConfig controls string normalization before comparison. The zero
// value compares case-insensitively without trimming.
type ExactConfig struct {
	// CaseSensitive disables Unicode case folding when true.
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`

	// TrimWhitespace applies strings.TrimSpace to both sides before
	// comparison.
	TrimWhitespace bool `yaml:"trim_whitespace" json:"trim_whitespace"`
}

// DefaultExactConfig returns case-insensitive matching with whitespace
// trimming.
func DefaultExactConfig() ExactConfig {
	return ExactConfig{CaseSensitive: false, TrimWhitespace: true}
}

// NewExactScorer returns an ExactScorer named name.
func NewExactScorer(name string, config ExactConfig) (*ExactScorer, error) {
	if name == "" {
		return nil, ErrEmptyMetricName
	}

	return &ExactScorer{
		name:   name,
		config: config,
		tracer: otel.Tracer("exact-scorer"),
	}, nil
}

// Name identifies the metric.
func (s *ExactScorer) Name() string { return s.name }

// Score compares answer.Text to record.ExpectedAnswer under the configured
// normalization and returns a binary-scored ledger entry.
func (s *ExactScorer) Score(ctx context.Context, record domain.QueryRecord, answer domain.Answer) (domain.LedgerEntry, error) {
	_, span := s.tracer.Start(ctx, "ExactScorer.Score",
		trace.WithAttributes(
			attribute.String("metric.name", s.name),
			attribute.String("query.id", record.ID()),
			attribute.Bool("config.case_sensitive", s.config.CaseSensitive),
		),
	)
	defer span.End()

	score := 0.0
	reason := "no exact match"
	if s.prepare(answer.Text) == s.prepare(record.ExpectedAnswer) {
		score = 1.0
		reason = "exact match"
	}

	span.SetAttributes(
		attribute.Float64("eval.score", score),
		attribute.Bool("no_llm_cost", true),
	)

	return domain.LedgerEntry{
		QueryID:  record.ID(),
		Query:    record.Query,
		Answer:   answer.Text,
		Expected: record.ExpectedAnswer,
		Score:    score,
		Passed:   score == 1.0,
		Reason:   reason,
	}, nil
}

func (s *ExactScorer) prepare(text string) string {
	if s.config.TrimWhitespace {
		text = strings.TrimSpace(text)
	}
	if !s.config.CaseSensitive {
		text = foldCaser.String(text)
	}
	return text
}
