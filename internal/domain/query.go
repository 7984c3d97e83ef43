// Package domain contains the core types and pure logic of the evaluation
// pipeline: query identity, answers with their retrieval context, ledger
// entries, and aggregate reporting. Nothing in this package performs I/O
// beyond the explicit file loaders, and nothing depends on the external
// parsing, indexing, or LLM boundaries.
package domain

import (
	"crypto/md5" // #nosec G401 - content addressing, not authentication
	"encoding/hex"
	"path/filepath"
	"strings"
)

// queryIDSeparator joins the document identity and query text before
// hashing. It is fixed: changing it would invalidate every existing cache
// and ledger file.
const queryIDSeparator = ":"

// GenerateQueryID derives a stable identifier from a query and the document
// it targets. Identical (documentID, queryText) pairs always produce the
// same ID across process restarts, so the ID is safe to use as a cache key
// and as the ledger de-duplication key.
//
// The hash input is byte-exact: a leading space in queryText yields a
// different ID. Callers that want whitespace-insensitive identity must
// normalize before calling.
func GenerateQueryID(queryText, documentID string) string {
	sum := md5.Sum([]byte(documentID + queryIDSeparator + queryText)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// DocumentID returns the stable document identity for a source file path:
// the base name with its extension removed. "./TSLA-10Q-Sep2024.pdf"
// becomes "TSLA-10Q-Sep2024".
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// QueryRecord is one test case: a question about a document together with
// the human-authored reference answer used for scoring.
type QueryRecord struct {
	// DocumentID scopes the query to a specific source document.
	DocumentID string `json:"document_id"`

	// Query is the natural-language question.
	Query string `json:"query"`

	// ExpectedAnswer is the ground-truth answer. It is only consulted by
	// the scoring boundary, never at inference time.
	ExpectedAnswer string `json:"expected_answer"`
}

// ID returns the record's query ID.
func (r QueryRecord) ID() string {
	return GenerateQueryID(r.Query, r.DocumentID)
}

// Answer is a produced answer together with the ordered evidence passages
// the retrieval stage supplied to the generator. It doubles as the answer
// cache entry value and is never mutated once written.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"answer"`

	// Context holds the retrieval context: the text snippets, in retrieval
	// order, that grounded the answer.
	Context []string `json:"context"`
}
