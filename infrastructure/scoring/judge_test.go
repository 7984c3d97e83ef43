package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenqlab/filingqa/internal/domain"
)

type stubJudgeLLM struct {
	response   string
	err        error
	lastPrompt string
	lastOpts   map[string]any
}

func (l *stubJudgeLLM) Complete(_ context.Context, prompt string, opts map[string]any) (string, error) {
	l.lastPrompt = prompt
	l.lastOpts = opts
	return l.response, l.err
}

func (l *stubJudgeLLM) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }
func (l *stubJudgeLLM) GetModel() string                        { return "gpt-4o-mini" }

func TestNewJudgeScorerValidation(t *testing.T) {
	llm := &stubJudgeLLM{}

	_, err := NewJudgeScorer("", DefaultJudgeConfig(), llm)
	assert.ErrorIs(t, err, ErrEmptyMetricName)

	_, err = NewJudgeScorer("correctness", DefaultJudgeConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM client")

	_, err = NewJudgeScorer("correctness", JudgeConfig{Prompt: "too short"}, llm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")

	_, err = NewJudgeScorer("correctness", JudgeConfig{Prompt: DefaultJudgePrompt + "{{.Broken"}, llm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}

func TestJudgeScorerScore(t *testing.T) {
	llm := &stubJudgeLLM{response: `{"score": 1.0, "passed": true, "reasoning": "matches the filing"}`}
	s, err := NewJudgeScorer("correctness", DefaultJudgeConfig(), llm)
	require.NoError(t, err)

	record := testRecord("$2.1 billion")
	entry, err := s.Score(context.Background(), record, domain.Answer{Text: "Net income was $2.1 billion."})
	require.NoError(t, err)

	assert.Equal(t, record.ID(), entry.QueryID)
	assert.Equal(t, 1.0, entry.Score)
	assert.True(t, entry.Passed)
	assert.Equal(t, "matches the filing", entry.Reason)
	assert.Equal(t, "gpt-4o-mini", entry.Model)
	assert.Zero(t, entry.Cost, "cost unset without a configured token price")

	assert.Contains(t, llm.lastPrompt, record.Query)
	assert.Contains(t, llm.lastPrompt, "$2.1 billion")
	assert.Contains(t, llm.lastPrompt, "valid JSON")
	assert.Equal(t, true, llm.lastOpts["json_response"])
}

func TestJudgeScorerThreshold(t *testing.T) {
	llm := &stubJudgeLLM{response: `{"score": 0.6, "passed": true, "reasoning": "partially correct"}`}

	cfg := DefaultJudgeConfig()
	cfg.Threshold = 0.7
	s, err := NewJudgeScorer("correctness", cfg, llm)
	require.NoError(t, err)

	entry, err := s.Score(context.Background(), testRecord("x"), domain.Answer{Text: "y"})
	require.NoError(t, err)

	assert.Equal(t, 0.6, entry.Score)
	assert.False(t, entry.Passed, "threshold overrides the model's own passed flag")
}

func TestJudgeScorerCostEstimate(t *testing.T) {
	llm := &stubJudgeLLM{response: `{"score": 1.0, "passed": true, "reasoning": "correct answer"}`}

	cfg := DefaultJudgeConfig()
	cfg.CostPerMillionTokens = 0.60
	s, err := NewJudgeScorer("correctness", cfg, llm)
	require.NoError(t, err)

	entry, err := s.Score(context.Background(), testRecord("x"), domain.Answer{Text: "y"})
	require.NoError(t, err)
	assert.Greater(t, entry.Cost, 0.0)
}

func TestJudgeScorerCompletionError(t *testing.T) {
	llm := &stubJudgeLLM{err: errors.New("rate limited")}
	s, err := NewJudgeScorer("correctness", DefaultJudgeConfig(), llm)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), testRecord("x"), domain.Answer{Text: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "judge completion")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     judgeVerdict
		wantErr  bool
	}{
		{
			name:     "plain json",
			response: `{"score": 0.5, "passed": false, "reasoning": "half right"}`,
			want:     judgeVerdict{Score: 0.5, Passed: false, Reasoning: "half right"},
		},
		{
			name:     "fenced json",
			response: "```json\n{\"score\": 1.0, \"passed\": true, \"reasoning\": \"ok\"}\n```",
			want:     judgeVerdict{Score: 1.0, Passed: true, Reasoning: "ok"},
		},
		{
			name:     "not json",
			response: "the answer looks right to me",
			wantErr:  true,
		},
		{
			name:     "score out of range",
			response: `{"score": 4.0, "passed": true, "reasoning": "scale confusion"}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
