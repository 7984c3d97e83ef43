package storage

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tenqlab/filingqa/internal/domain"
)

// IndexedNode is one parsed document node together with its embedding
// vector, the unit of the parsed-node cache. Caching nodes after embedding
// means a cache hit skips both the parsing service and the embedder.
type IndexedNode struct {
	// Text is the node's content.
	Text string

	// Vector is the node's embedding under the model the cache key names.
	Vector []float64
}

// NodeCache persists parsed-and-embedded document nodes under a directory,
// one gob file per (document, generation model, embedding model) key.
// Embeddings are model-specific, so the key must include both model names;
// see NodeCacheKey.
type NodeCache struct {
	dir string
}

// NewNodeCache returns a cache rooted at dir. The directory is created on
// first save.
func NewNodeCache(dir string) *NodeCache { return &NodeCache{dir: dir} }

// NodeCacheKey builds the cache key for a document processed with the given
// generation and embedding models. Slashes in model names are flattened so
// the key is a safe file name.
func NodeCacheKey(documentPath, llmModel, embedModel string) string {
	clean := func(s string) string { return strings.ReplaceAll(s, "/", "_") }
	return fmt.Sprintf("%s_%s_%s", filepath.Base(documentPath), clean(llmModel), clean(embedModel))
}

// Load reads the cached nodes for key. Returns ok=false on a missing entry
// and a *domain.StorageError on a corrupt one.
func (c *NodeCache) Load(key string) ([]IndexedNode, bool, error) {
	path := c.pathFor(key)

	f, err := os.Open(path) // #nosec G304 - path derived from configured cache dir
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewStorageError(path, "load node cache", err)
	}
	defer f.Close()

	var nodes []IndexedNode
	if err := gob.NewDecoder(f).Decode(&nodes); err != nil {
		return nil, false, domain.NewStorageError(path, "decode node cache", err)
	}

	return nodes, true, nil
}

// Save writes nodes for key, creating the cache directory if absent.
func (c *NodeCache) Save(key string, nodes []IndexedNode) error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return domain.NewStorageError(c.dir, "create node cache dir", err)
	}

	path := c.pathFor(key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return domain.NewStorageError(path, "save node cache", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(nodes); err != nil {
		return domain.NewStorageError(path, "encode node cache", err)
	}

	return nil
}

func (c *NodeCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+".gob")
}
