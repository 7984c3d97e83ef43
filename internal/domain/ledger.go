package domain

// LedgerEntry records the outcome of scoring one query. An entry existing
// for a query ID is a permanent skip-marker: later runs never re-score that
// ID against the same ledger file.
type LedgerEntry struct {
	// QueryID keys the entry; see GenerateQueryID.
	QueryID string `json:"query_id"`

	// Query is the question that was asked.
	Query string `json:"query"`

	// Answer is the answer the pipeline produced.
	Answer string `json:"answer"`

	// Expected is the human-authored reference answer.
	Expected string `json:"expected_answer"`

	// Score is the numeric score the metric assigned.
	Score float64 `json:"score"`

	// Passed reports whether the score met the metric's threshold.
	Passed bool `json:"passed"`

	// Reason is the metric's rationale for the score, when it has one.
	Reason string `json:"reason,omitempty"`

	// Cost is the estimated evaluation cost in dollars, when known.
	Cost float64 `json:"cost,omitempty"`

	// Model identifies the model that produced the score, when one was
	// involved.
	Model string `json:"evaluation_model,omitempty"`
}
