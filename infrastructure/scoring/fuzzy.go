package scoring

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenqlab/filingqa/internal/domain"
	"github.com/tenqlab/filingqa/internal/ports"
)

var _ ports.Scorer = (*FuzzyScorer)(nil)

// FuzzyScorer scores answers by Levenshtein similarity to the expected
// answer. Similarities below the configured threshold collapse to 0.0 so
// weak matches do not accumulate partial credit.
//
// FuzzyScorer is stateless and safe for concurrent use.
type FuzzyScorer struct {
	name   string
	config FuzzyConfig
	tracer trace.Tracer
}

// FuzzyConfig defines the parameters for fuzzy matching.
type FuzzyConfig struct {
	// Threshold is the minimum similarity (0.0-1.0) counted as a match.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"min=0,max=1"`

	// CaseSensitive disables Unicode case folding when true.
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`
}

// DefaultFuzzyConfig returns case-insensitive matching with a 0.8
// similarity threshold.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{Threshold: 0.8, CaseSensitive: false}
}

// NewFuzzyScorer returns a FuzzyScorer named name.
func NewFuzzyScorer(name string, config FuzzyConfig) (*FuzzyScorer, error) {
	if name == "" {
		return nil, ErrEmptyMetricName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &FuzzyScorer{
		name:   name,
		config: config,
		tracer: otel.Tracer("fuzzy-scorer"),
	}, nil
}

// Name identifies the metric.
func (s *FuzzyScorer) Name() string { return s.name }

// Score computes the Levenshtein similarity between answer.Text and
// record.ExpectedAnswer and applies the configured threshold.
func (s *FuzzyScorer) Score(ctx context.Context, record domain.QueryRecord, answer domain.Answer) (domain.LedgerEntry, error) {
	_, span := s.tracer.Start(ctx, "FuzzyScorer.Score",
		trace.WithAttributes(
			attribute.String("metric.name", s.name),
			attribute.String("query.id", record.ID()),
			attribute.Float64("config.threshold", s.config.Threshold),
		),
	)
	defer span.End()

	produced := s.prepare(answer.Text)
	expected := s.prepare(record.ExpectedAnswer)

	similarity := similarity(produced, expected)

	score := similarity
	reason := fmt.Sprintf("fuzzy similarity %.2f%%", similarity*100)
	if similarity < s.config.Threshold {
		score = 0.0
		reason = fmt.Sprintf("no match (similarity %.2f%% below threshold %.2f%%)",
			similarity*100, s.config.Threshold*100)
	}

	span.SetAttributes(
		attribute.Float64("eval.score", score),
		attribute.Float64("eval.similarity", similarity),
		attribute.Bool("no_llm_cost", true),
	)

	return domain.LedgerEntry{
		QueryID:  record.ID(),
		Query:    record.Query,
		Answer:   answer.Text,
		Expected: record.ExpectedAnswer,
		Score:    score,
		Passed:   score >= s.config.Threshold && score > 0,
		Reason:   reason,
	}, nil
}

func (s *FuzzyScorer) prepare(text string) string {
	text = strings.TrimSpace(text)
	if !s.config.CaseSensitive {
		text = foldCaser.String(text)
	}
	return text
}

// similarity converts Levenshtein edit distance to a 0.0-1.0 ratio over the
// longer string's rune count. Two empty strings are identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}
