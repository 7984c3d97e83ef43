package domain

import (
	"encoding/json"
	"fmt"
	"os"
)

// PercentageMeeting returns the percentage of entries satisfying the
// predicate: 100 * matched / total. An empty slice yields 0, not an error.
func PercentageMeeting(entries []LedgerEntry, predicate func(LedgerEntry) bool) float64 {
	if len(entries) == 0 {
		return 0
	}

	matched := 0
	for _, e := range entries {
		if predicate(e) {
			matched++
		}
	}

	return 100 * float64(matched) / float64(len(entries))
}

// Summary aggregates a ledger into headline numbers.
type Summary struct {
	// Total is the number of ledger entries examined.
	Total int

	// Matched is the number of entries whose score reached the threshold.
	Matched int

	// Percentage is 100 * Matched / Total, or 0 when Total is 0.
	Percentage float64
}

// SummarizeLedgerFile reads a ledger file and reports how many entries
// scored at or above the threshold. It is meant for interactive inspection,
// so failures are soft: an unreadable file or a file that is not a JSON
// list yields ErrReportUnavailable rather than a storage error.
func SummarizeLedgerFile(path string, threshold float64) (Summary, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path chosen by the operator
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrReportUnavailable, err)
	}

	var entries []LedgerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Summary{}, fmt.Errorf("%w: %s is not a JSON list of entries: %v", ErrReportUnavailable, path, err)
	}

	pct := PercentageMeeting(entries, func(e LedgerEntry) bool { return e.Score >= threshold })

	matched := 0
	for _, e := range entries {
		if e.Score >= threshold {
			matched++
		}
	}

	return Summary{Total: len(entries), Matched: matched, Percentage: pct}, nil
}
