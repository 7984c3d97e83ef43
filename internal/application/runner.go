package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tenqlab/filingqa/infrastructure/storage"
	"github.com/tenqlab/filingqa/internal/domain"
	"github.com/tenqlab/filingqa/internal/ports"
)

// Runner drives one evaluation batch over a dataset: answer, score, record.
// It is resumable by construction - the ledger marks which query IDs are
// already scored, and the answer cache spares the answer boundary on
// queries seen in earlier runs.
type Runner struct {
	engine    ports.AnswerEngine
	scorer    ports.Scorer
	cache     *storage.AnswerCache
	cachePath string
	ledger    *storage.Ledger
	throttle  ports.Throttle
	snapDir   string
	logger    *log.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Engine produces answers. Required.
	Engine ports.AnswerEngine

	// Scorer judges answers. Required.
	Scorer ports.Scorer

	// Cache holds previously produced answers; CachePath is where it is
	// flushed after the run. Required.
	Cache     *storage.AnswerCache
	CachePath string

	// Ledger records scored outcomes. Required.
	Ledger *storage.Ledger

	// Throttle paces scoring calls. Required; tests inject an unlimited
	// implementation.
	Throttle ports.Throttle

	// SnapshotDir receives a versioned snapshot of this run's entries.
	// Empty disables snapshots.
	SnapshotDir string

	// Logger receives per-item progress. Defaults to log.Default().
	Logger *log.Logger
}

// RunResult summarizes one batch.
type RunResult struct {
	// Scored counts queries scored and appended this run.
	Scored int

	// AlreadyScored counts queries skipped because the ledger already held
	// them.
	AlreadyScored int

	// AnswerFailures counts queries skipped because the answer boundary
	// failed. They stay unscored and will be retried next run.
	AnswerFailures int

	// SnapshotPath is the versioned snapshot written for this run, empty
	// when nothing was scored or snapshots are disabled.
	SnapshotPath string
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Engine == nil:
		return nil, errors.New("runner: engine is required")
	case cfg.Scorer == nil:
		return nil, errors.New("runner: scorer is required")
	case cfg.Cache == nil || cfg.CachePath == "":
		return nil, errors.New("runner: cache and cache path are required")
	case cfg.Ledger == nil:
		return nil, errors.New("runner: ledger is required")
	case cfg.Throttle == nil:
		return nil, errors.New("runner: throttle is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		engine:    cfg.Engine,
		scorer:    cfg.Scorer,
		cache:     cfg.Cache,
		cachePath: cfg.CachePath,
		ledger:    cfg.Ledger,
		throttle:  cfg.Throttle,
		snapDir:   cfg.SnapshotDir,
		logger:    logger,
	}, nil
}

// Run evaluates every unscored query in dataset, in query-ID order so runs
// are reproducible. Answer failures skip the item and continue; scoring and
// ledger failures abort the batch, since an unsaved score means the work
// has to be redone anyway. The answer cache is flushed before Run returns,
// including on the abort paths, so paid answers survive a failed batch.
func (r *Runner) Run(ctx context.Context, dataset domain.Dataset) (RunResult, error) {
	var result RunResult

	defer func() {
		if err := r.cache.Flush(r.cachePath); err != nil {
			r.logger.Printf("flush answer cache: %v", err)
		}
	}()

	var scoredThisRun []domain.LedgerEntry

	for _, id := range dataset.SortedIDs() {
		record := dataset[id]

		if r.ledger.Contains(id) {
			result.AlreadyScored++
			continue
		}

		answer, err := r.answerFor(ctx, id, record)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			r.logger.Printf("answer %s: %v", id, err)
			result.AnswerFailures++
			continue
		}

		entry, err := r.scorer.Score(ctx, record, answer)
		if err != nil {
			return result, fmt.Errorf("score %s: %w", id, err)
		}

		if err := r.ledger.Append(entry); err != nil {
			return result, fmt.Errorf("record %s: %w", id, err)
		}

		scoredThisRun = append(scoredThisRun, entry)
		result.Scored++
		r.logger.Printf("scored %s: %.2f (passed=%t)", id, entry.Score, entry.Passed)

		if err := r.throttle.Wait(ctx); err != nil {
			return result, err
		}
	}

	if r.snapDir != "" && len(scoredThisRun) > 0 {
		path, err := storage.SaveSnapshot(scoredThisRun, r.scorer.Name(), r.snapDir)
		if err != nil {
			return result, err
		}
		result.SnapshotPath = path
	}

	return result, nil
}

// answerFor consults the answer cache before invoking the answer boundary.
// Fresh answers are cached immediately so they survive even if a later item
// aborts the batch.
func (r *Runner) answerFor(ctx context.Context, id string, record domain.QueryRecord) (domain.Answer, error) {
	if answer, ok := r.cache.Get(id); ok {
		return answer, nil
	}

	answer, err := r.engine.Answer(ctx, record.Query)
	if err != nil {
		return domain.Answer{}, err
	}

	r.cache.Put(id, answer)
	return answer, nil
}
