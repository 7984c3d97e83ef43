package domain

import (
	"encoding/json"
	"os"
	"sort"
)

// Dataset is a batch of test cases keyed by query ID, the pre-built lookup
// the evaluation runner iterates over.
type Dataset map[string]QueryRecord

// LoadDataset reads a JSON array of query records and indexes them by query
// ID. Duplicate (document, query) pairs collapse onto one key, mirroring
// the identity the cache and ledger use.
func LoadDataset(path string) (Dataset, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path chosen by the operator
	if err != nil {
		return nil, NewStorageError(path, "load dataset", err)
	}

	var records []QueryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, NewStorageError(path, "parse dataset", err)
	}

	ds := make(Dataset, len(records))
	for _, r := range records {
		ds[r.ID()] = r
	}

	return ds, nil
}

// SortedIDs returns the dataset's query IDs in lexical order so batch runs
// visit records deterministically.
func (d Dataset) SortedIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
