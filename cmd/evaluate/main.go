// Command evaluate runs a batch evaluation: every unscored query in the
// dataset is answered, judged, and appended to the metric's ledger, with a
// versioned snapshot written at the end of the run. Re-running resumes
// where the last run stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tenqlab/filingqa/infrastructure/storage"
	"github.com/tenqlab/filingqa/internal/application"
	"github.com/tenqlab/filingqa/internal/domain"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to the run configuration")
		envPath    = flag.String("env", ".env", "Path to the dotenv credentials file")
		document   = flag.String("document", "", "Path to the filing PDF")
		metric     = flag.String("metric", "correctness", "Scoring metric: correctness, exact, or fuzzy")
	)
	flag.Parse()

	if *document == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := application.LoadEnv(*envPath); err != nil {
		log.Fatalf("Failed to load %s: %v", *envPath, err)
	}

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dataset, err := domain.LoadDataset(cfg.Paths.Dataset)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	pipeline, err := application.BuildPipeline(cfg, *document)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	scorer := pipeline.Judge
	if *metric != "correctness" {
		scorer, err = application.BuildScorer(*metric, cfg, nil)
		if err != nil {
			log.Fatalf("Failed to build scorer: %v", err)
		}
	}

	cachePath := filepath.Join(cfg.Paths.CacheDir, "answers.json")
	cache, err := storage.LoadAnswerCache(cachePath)
	if err != nil {
		log.Fatalf("Failed to load answer cache: %v", err)
	}

	ledgerPath := filepath.Join(cfg.Paths.ResultsDir, scorer.Name()+".json")
	ledger := storage.LoadLedger(ledgerPath)

	runner, err := application.NewRunner(application.RunnerConfig{
		Engine:      pipeline.Engine,
		Scorer:      scorer,
		Cache:       cache,
		CachePath:   cachePath,
		Ledger:      ledger,
		Throttle:    application.BuildThrottle(cfg),
		SnapshotDir: cfg.Paths.ResultsDir,
	})
	if err != nil {
		log.Fatalf("Failed to build runner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Evaluating %d queries against %s with metric %s", len(dataset), *document, scorer.Name())

	result, err := runner.Run(ctx, dataset)
	if err != nil {
		log.Fatalf("Batch failed after %d scored: %v", result.Scored, err)
	}

	fmt.Printf("Scored: %d\n", result.Scored)
	fmt.Printf("Already scored: %d\n", result.AlreadyScored)
	fmt.Printf("Answer failures: %d\n", result.AnswerFailures)
	if result.SnapshotPath != "" {
		fmt.Printf("Snapshot: %s\n", result.SnapshotPath)
	}
}
