// Package storage persists the pipeline's durable artifacts: the answer
// cache, the parsed-node cache, the append-only result ledger, and
// versioned metric snapshots. All files live under operator-chosen
// directories and are written by a single process at a time; there is no
// file locking.
package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tenqlab/filingqa/internal/domain"
)

// AnswerCache maps query IDs to previously produced answers so repeated
// runs skip the expensive answer boundary. Entries are write-once: a cached
// answer is never replaced by a later run.
//
// The cache tracks dirtiness so Flush only rewrites the file when this run
// actually added entries. A cache fully satisfied from disk costs no write.
type AnswerCache struct {
	entries map[string]domain.Answer
	dirty   bool
}

// NewAnswerCache returns an empty, dirty-tracking cache.
func NewAnswerCache() *AnswerCache {
	return &AnswerCache{entries: make(map[string]domain.Answer)}
}

// LoadAnswerCache reads a cache file into memory. A missing file yields an
// empty cache; an existing but unreadable or corrupt file yields a
// *domain.StorageError, because silently discarding a cache of paid LLM
// answers is worse than stopping. Callers that prefer to start fresh can
// detect the error type and fall back to NewAnswerCache.
func LoadAnswerCache(path string) (*AnswerCache, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return NewAnswerCache(), nil
	}
	if err != nil {
		return nil, domain.NewStorageError(path, "load cache", err)
	}

	entries := make(map[string]domain.Answer)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, domain.NewStorageError(path, "parse cache", err)
	}

	return &AnswerCache{entries: entries}, nil
}

// Get returns the cached answer for queryID, if present.
func (c *AnswerCache) Get(queryID string) (domain.Answer, bool) {
	a, ok := c.entries[queryID]
	return a, ok
}

// Put stores an answer for queryID and marks the cache dirty. Existing
// entries are overwritten in memory, though the pipeline never does so in
// practice.
func (c *AnswerCache) Put(queryID string, answer domain.Answer) {
	c.entries[queryID] = answer
	c.dirty = true
}

// Len reports the number of cached entries.
func (c *AnswerCache) Len() int { return len(c.entries) }

// Dirty reports whether the cache gained entries since it was loaded.
func (c *AnswerCache) Dirty() bool { return c.dirty }

// Flush serializes the full cache to path when dirty, creating the parent
// directory if needed. A clean cache is a no-op. The cache is considered
// clean again after a successful flush.
func (c *AnswerCache) Flush(path string) error {
	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return domain.NewStorageError(path, "create cache dir", err)
	}

	raw, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return domain.NewStorageError(path, "encode cache", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return domain.NewStorageError(path, "flush cache", err)
	}

	c.dirty = false
	return nil
}
