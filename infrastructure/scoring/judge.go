package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenqlab/filingqa/internal/domain"
	"github.com/tenqlab/filingqa/internal/ports"
)

var _ ports.Scorer = (*JudgeScorer)(nil)

// DefaultJudgePrompt asks the judge to grade correctness of an answer
// against the reference. Placeholders are filled from the query record and
// the produced answer.
const DefaultJudgePrompt = `You are grading an answer extracted from a company's quarterly filing.

Question: {{.Query}}
Reference answer: {{.Expected}}
Produced answer: {{.Answer}}

Score the produced answer for factual agreement with the reference answer
on a scale from 0.0 to 1.0, where 1.0 means fully correct.`

// jsonInstruction pins the response shape so the reply parses without
// heuristics.
const jsonInstruction = "\n\nIMPORTANT: You must respond with valid JSON in exactly this format:\n" +
	`{"score": <number between 0.0 and 1.0>, "passed": <true or false>, "reasoning": "<short explanation>"}`

// JudgeScorer asks an LLM to grade a produced answer against the expected
// answer. It is the semantic metric of the pipeline; use the deterministic
// scorers when edit distance is a good enough proxy.
type JudgeScorer struct {
	name           string
	config         JudgeConfig
	llm            ports.LLMClient
	promptTemplate *template.Template
	tracer         trace.Tracer
}

// JudgeConfig defines the parameters for LLM-as-judge scoring.
type JudgeConfig struct {
	// Prompt is the Go template rendered with {{.Query}}, {{.Expected}},
	// and {{.Answer}}.
	Prompt string `yaml:"prompt" json:"prompt" validate:"required,min=20"`

	// Threshold is the minimum score counted as a pass.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"min=0,max=1"`

	// Temperature passed to the judge model. Low values keep grading
	// stable across runs.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`

	// CostPerMillionTokens prices the judge's estimated token usage in
	// dollars. Zero leaves the cost field unset.
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens" json:"cost_per_million_tokens" validate:"min=0"`
}

// DefaultJudgeConfig returns the default prompt with a 1.0 threshold: only
// fully correct answers pass.
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Prompt:    DefaultJudgePrompt,
		Threshold: 1.0,
	}
}

// judgeVerdict is the judge model's JSON reply.
type judgeVerdict struct {
	Score     float64 `json:"score"`
	Passed    bool    `json:"passed"`
	Reasoning string  `json:"reasoning"`
}

// NewJudgeScorer compiles the prompt template and returns a JudgeScorer.
func NewJudgeScorer(name string, config JudgeConfig, llm ports.LLMClient) (*JudgeScorer, error) {
	if name == "" {
		return nil, ErrEmptyMetricName
	}
	if llm == nil {
		return nil, fmt.Errorf("judge scorer requires an LLM client")
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	tmpl, err := template.New("judge_prompt").Parse(config.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parse judge prompt template: %w", err)
	}

	return &JudgeScorer{
		name:           name,
		config:         config,
		llm:            llm,
		promptTemplate: tmpl,
		tracer:         otel.Tracer("judge-scorer"),
	}, nil
}

// Name identifies the metric.
func (s *JudgeScorer) Name() string { return s.name }

// Score renders the judge prompt, queries the judge model, and parses its
// verdict into a ledger entry. The entry records the judge model identity
// and, when a token price is configured, the estimated cost.
func (s *JudgeScorer) Score(ctx context.Context, record domain.QueryRecord, answer domain.Answer) (domain.LedgerEntry, error) {
	ctx, span := s.tracer.Start(ctx, "JudgeScorer.Score",
		trace.WithAttributes(
			attribute.String("metric.name", s.name),
			attribute.String("query.id", record.ID()),
			attribute.String("judge.model", s.llm.GetModel()),
			attribute.Float64("config.threshold", s.config.Threshold),
		),
	)
	defer span.End()

	start := time.Now()

	var promptBuf bytes.Buffer
	err := s.promptTemplate.Execute(&promptBuf, struct {
		Query    string
		Expected string
		Answer   string
	}{
		Query:    record.Query,
		Expected: record.ExpectedAnswer,
		Answer:   answer.Text,
	})
	if err != nil {
		span.RecordError(err)
		return domain.LedgerEntry{}, fmt.Errorf("execute judge prompt template: %w", err)
	}
	prompt := promptBuf.String() + jsonInstruction

	response, err := s.llm.Complete(ctx, prompt, map[string]any{
		"temperature":   s.config.Temperature,
		"json_response": true,
	})
	if err != nil {
		span.RecordError(err)
		return domain.LedgerEntry{}, fmt.Errorf("judge completion: %w", err)
	}

	verdict, err := parseVerdict(response)
	if err != nil {
		span.RecordError(err)
		return domain.LedgerEntry{}, err
	}

	passed := verdict.Score >= s.config.Threshold

	span.SetAttributes(
		attribute.Float64("eval.score", verdict.Score),
		attribute.Bool("eval.passed", passed),
		attribute.Int64("eval.latency_ms", time.Since(start).Milliseconds()),
	)

	return domain.LedgerEntry{
		QueryID:  record.ID(),
		Query:    record.Query,
		Answer:   answer.Text,
		Expected: record.ExpectedAnswer,
		Score:    verdict.Score,
		Passed:   passed,
		Reason:   verdict.Reasoning,
		Cost:     s.estimateCost(prompt, response),
		Model:    s.llm.GetModel(),
	}, nil
}

// parseVerdict decodes the judge's JSON reply. Code fences around the JSON
// are tolerated; anything else is an error.
func parseVerdict(response string) (judgeVerdict, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return judgeVerdict{}, fmt.Errorf("parse judge verdict %q: %w", response, err)
	}
	if verdict.Score < 0 || verdict.Score > 1 {
		return judgeVerdict{}, fmt.Errorf("judge score %.2f outside 0.0-1.0", verdict.Score)
	}
	return verdict, nil
}

func (s *JudgeScorer) estimateCost(prompt, response string) float64 {
	if s.config.CostPerMillionTokens <= 0 {
		return 0
	}

	promptTokens, err := s.llm.EstimateTokens(prompt)
	if err != nil {
		return 0
	}
	responseTokens, err := s.llm.EstimateTokens(response)
	if err != nil {
		return 0
	}

	return float64(promptTokens+responseTokens) / 1e6 * s.config.CostPerMillionTokens
}
