package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tenqlab/filingqa/internal/domain"
)

// Ledger is the durable, append-only record of scored queries. An entry
// existing for a query ID marks that ID permanently done: the batch runner
// checks Contains before invoking the scoring boundary.
//
// Unlike the answer cache, ledger loading is lenient: a missing or corrupt
// file reads as empty. Ledger contents are recomputable (re-scoring costs
// one metric call per entry), so a damaged file degrades to re-work rather
// than stopping the run. Appends, by contrast, are strict - losing a scored
// result silently is not acceptable.
type Ledger struct {
	path    string
	entries []domain.LedgerEntry
	byID    map[string]int
}

// LoadLedger reads the ledger at path. Missing files and files that fail to
// parse as a JSON list both yield an empty ledger.
func LoadLedger(path string) *Ledger {
	l := &Ledger{path: path, byID: make(map[string]int)}

	raw, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return l
	}

	var entries []domain.LedgerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return l
	}

	l.entries = entries
	for i, e := range entries {
		l.byID[e.QueryID] = i
	}
	return l
}

// Contains reports whether queryID has already been scored.
func (l *Ledger) Contains(queryID string) bool {
	_, ok := l.byID[queryID]
	return ok
}

// Entries returns the ledger's entries in append order. The returned slice
// is shared; callers must not modify it.
func (l *Ledger) Entries() []domain.LedgerEntry { return l.entries }

// Len reports the number of ledger entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Append adds one entry and rewrites the full JSON list to disk. This is a
// read-modify-write over the in-memory state, safe only for a single
// sequential writer. Any I/O failure is returned as a *domain.StorageError
// and the in-memory state is left unchanged, so the caller can stop the
// batch without a phantom skip-marker.
func (l *Ledger) Append(entry domain.LedgerEntry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return domain.NewStorageError(l.path, "create ledger dir", err)
	}

	next := append(l.entries, entry)

	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return domain.NewStorageError(l.path, "encode ledger", err)
	}

	if err := os.WriteFile(l.path, raw, 0o600); err != nil {
		return domain.NewStorageError(l.path, "append ledger", err)
	}

	l.entries = next
	l.byID[entry.QueryID] = len(next) - 1
	return nil
}

// LedgerExists reports whether a ledger file is present at path, without
// attempting to parse it.
func LedgerExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
