package application

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenqlab/filingqa/infrastructure/storage"
	"github.com/tenqlab/filingqa/internal/domain"
)

type stubEngine struct {
	answers map[string]domain.Answer
	errs    map[string]error
	calls   map[string]int
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		answers: make(map[string]domain.Answer),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (e *stubEngine) Answer(_ context.Context, queryText string) (domain.Answer, error) {
	e.calls[queryText]++
	if err, ok := e.errs[queryText]; ok {
		return domain.Answer{}, err
	}
	if a, ok := e.answers[queryText]; ok {
		return a, nil
	}
	return domain.Answer{Text: "generated: " + queryText}, nil
}

func (e *stubEngine) DocumentID() string { return "TSLA-10Q-Sep2024" }

type stubScorer struct {
	err   error
	calls int
}

func (s *stubScorer) Name() string { return "correctness" }

func (s *stubScorer) Score(_ context.Context, record domain.QueryRecord, answer domain.Answer) (domain.LedgerEntry, error) {
	s.calls++
	if s.err != nil {
		return domain.LedgerEntry{}, s.err
	}
	return domain.LedgerEntry{
		QueryID:  record.ID(),
		Query:    record.Query,
		Answer:   answer.Text,
		Expected: record.ExpectedAnswer,
		Score:    1.0,
		Passed:   true,
	}, nil
}

type noThrottle struct{}

func (noThrottle) Wait(_ context.Context) error { return nil }

func testDataset(queries ...string) domain.Dataset {
	ds := make(domain.Dataset, len(queries))
	for _, q := range queries {
		record := domain.QueryRecord{
			DocumentID:     "TSLA-10Q-Sep2024",
			Query:          q,
			ExpectedAnswer: "expected " + q,
		}
		ds[record.ID()] = record
	}
	return ds
}

type runnerFixture struct {
	runner *Runner
	engine *stubEngine
	scorer *stubScorer
	cache  *storage.AnswerCache
	ledger *storage.Ledger

	cachePath  string
	ledgerPath string
	snapDir    string
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	dir := t.TempDir()
	f := &runnerFixture{
		engine:     newStubEngine(),
		scorer:     &stubScorer{},
		cache:      storage.NewAnswerCache(),
		cachePath:  filepath.Join(dir, "cache", "answers.json"),
		ledgerPath: filepath.Join(dir, "results", "correctness.json"),
		snapDir:    filepath.Join(dir, "results"),
	}
	f.ledger = storage.LoadLedger(f.ledgerPath)

	runner, err := NewRunner(RunnerConfig{
		Engine:      f.engine,
		Scorer:      f.scorer,
		Cache:       f.cache,
		CachePath:   f.cachePath,
		Ledger:      f.ledger,
		Throttle:    noThrottle{},
		SnapshotDir: f.snapDir,
		Logger:      log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	f.runner = runner
	return f
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(RunnerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine")
}

func TestRunScoresEveryQuery(t *testing.T) {
	f := newRunnerFixture(t)
	ds := testDataset("What was the net income?", "What was total revenue?")

	result, err := f.runner.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scored)
	assert.Equal(t, 0, result.AlreadyScored)
	assert.Equal(t, 2, f.ledger.Len())
	assert.NotEmpty(t, result.SnapshotPath)
	assert.FileExists(t, result.SnapshotPath)
	assert.FileExists(t, f.cachePath)
}

func TestRunSkipsLedgeredQueries(t *testing.T) {
	f := newRunnerFixture(t)
	ds := testDataset("What was the net income?", "What was total revenue?")

	_, err := f.runner.Run(context.Background(), ds)
	require.NoError(t, err)

	// Second run over the same ledger scores nothing.
	second := newRunnerFixture(t)
	second.ledger = f.ledger
	runner, err := NewRunner(RunnerConfig{
		Engine:    second.engine,
		Scorer:    second.scorer,
		Cache:     second.cache,
		CachePath: second.cachePath,
		Ledger:    f.ledger,
		Throttle:  noThrottle{},
		Logger:    log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Scored)
	assert.Equal(t, 2, result.AlreadyScored)
	assert.Equal(t, 0, second.scorer.calls, "ledgered queries must not reach the scorer")
	assert.Empty(t, second.engine.calls)
	assert.Empty(t, result.SnapshotPath, "no snapshot when nothing was scored")
}

func TestRunUsesAnswerCache(t *testing.T) {
	f := newRunnerFixture(t)
	ds := testDataset("What was the net income?")

	var id string
	for k := range ds {
		id = k
	}
	f.cache.Put(id, domain.Answer{Text: "cached answer"})

	result, err := f.runner.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scored)
	assert.Empty(t, f.engine.calls, "cached queries must not reach the engine")
	assert.Equal(t, "cached answer", f.ledger.Entries()[0].Answer)
}

func TestRunAnswerFailureSkipsItem(t *testing.T) {
	f := newRunnerFixture(t)
	ds := testDataset("failing query", "working query")
	f.engine.errs["failing query"] = errors.New("parse service down")

	result, err := f.runner.Run(context.Background(), ds)
	require.NoError(t, err, "answer failures must not abort the batch")

	assert.Equal(t, 1, result.Scored)
	assert.Equal(t, 1, result.AnswerFailures)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestRunScorerFailureAborts(t *testing.T) {
	f := newRunnerFixture(t)
	f.scorer.err = errors.New("judge unavailable")
	ds := testDataset("What was the net income?")

	_, err := f.runner.Run(context.Background(), ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score")
	assert.Equal(t, 0, f.ledger.Len(), "failed scores must not become skip-markers")
}

func TestRunFlushesCacheOnAbort(t *testing.T) {
	f := newRunnerFixture(t)
	f.scorer.err = errors.New("judge unavailable")
	ds := testDataset("What was the net income?")

	_, err := f.runner.Run(context.Background(), ds)
	require.Error(t, err)

	// The answer was produced before scoring failed; it must survive.
	assert.FileExists(t, f.cachePath)
	reloaded, err := storage.LoadAnswerCache(f.cachePath)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
}

func TestRunContextCancellation(t *testing.T) {
	f := newRunnerFixture(t)
	ds := testDataset("What was the net income?")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.engine.errs["What was the net income?"] = ctx.Err()

	_, err := f.runner.Run(ctx, ds)
	require.ErrorIs(t, err, context.Canceled)
}
