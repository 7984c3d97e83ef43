package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/tenqlab/filingqa/internal/domain"
)

// SaveSnapshot writes data as an immutable, versioned JSON artifact named
// {metricName}_v{N}.json inside dir, where N is one greater than the
// highest version already present (not the file count, so deleted versions
// leave gaps rather than being reused). Prior snapshots are never
// overwritten. Returns the path written.
func SaveSnapshot(data any, metricName, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", domain.NewStorageError(dir, "create snapshot dir", err)
	}

	next, err := nextSnapshotVersion(metricName, dir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_v%d.json", metricName, next))

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", domain.NewStorageError(path, "encode snapshot", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", domain.NewStorageError(path, "write snapshot", err)
	}

	return path, nil
}

// nextSnapshotVersion scans dir for existing {metricName}_v<N>.json files
// and returns max(N)+1, or 1 when none exist.
func nextSnapshotVersion(metricName, dir string) (int, error) {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(metricName) + `_v(\d+)\.json$`)

	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, domain.NewStorageError(dir, "scan snapshot dir", err)
	}

	maxVersion := 0
	for _, f := range files {
		m := pattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > maxVersion {
			maxVersion = v
		}
	}

	return maxVersion + 1, nil
}
