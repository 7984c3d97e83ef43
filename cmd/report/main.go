// Command report summarizes a metric's ledger: the percentage of scored
// queries whose score met the threshold. An unreadable ledger reports as
// unavailable rather than failing, so a report over many metrics can keep
// going.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/tenqlab/filingqa/internal/domain"
)

func main() {
	var (
		resultsDir = flag.String("results", "results", "Directory holding metric ledgers")
		threshold  = flag.Float64("threshold", 1.0, "Minimum score counted as correct")
	)
	flag.Parse()

	metrics := flag.Args()
	if len(metrics) == 0 {
		metrics = []string{"correctness"}
	}

	for _, metric := range metrics {
		path := filepath.Join(*resultsDir, metric+".json")

		summary, err := domain.SummarizeLedgerFile(path, *threshold)
		if errors.Is(err, domain.ErrReportUnavailable) {
			log.Printf("Skipping %s: %v", metric, err)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to summarize %s: %v", metric, err)
		}

		fmt.Printf("%s: %.1f%% correct (%d of %d)\n",
			metric, summary.Percentage, summary.Matched, summary.Total)
	}
}
