// Package scoring implements the metrics that judge produced answers
// against expected answers: an LLM judge for semantic correctness, plus
// deterministic exact and fuzzy string matchers for known-ground-truth
// datasets where LLM costs are unjustified.
package scoring

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

var (
	// ErrEmptyMetricName is returned when a scorer is created without a name.
	ErrEmptyMetricName = errors.New("metric name cannot be empty")

	// validate checks scorer configs via struct tags.
	validate = validator.New()

	// foldCaser is a package-level Unicode case folder; creating one per
	// comparison is wasteful.
	foldCaser = cases.Fold()
)
