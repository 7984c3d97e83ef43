package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenqlab/filingqa/internal/domain"
)

func TestNodeCacheKey(t *testing.T) {
	key := NodeCacheKey("./TSLA-10Q-Sep2024.pdf", "gpt-4o-mini", "models/text-embedding-004")
	assert.Equal(t, "TSLA-10Q-Sep2024.pdf_gpt-4o-mini_models_text-embedding-004", key)
}

func TestNodeCache_RoundTrip(t *testing.T) {
	cache := NewNodeCache(filepath.Join(t.TempDir(), "cached_nodes"))
	nodes := []IndexedNode{
		{Text: "page one", Vector: []float64{0.1, 0.2}},
		{Text: "page two", Vector: []float64{0.3, 0.4}},
	}

	_, ok, err := cache.Load("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Save("k", nodes))

	got, ok, err := cache.Load("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, nodes, got)
}

func TestNodeCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	cache := NewNodeCache(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.gob"), []byte("junk"), 0o600))

	_, _, err := cache.Load("bad")
	var se *domain.StorageError
	require.ErrorAs(t, err, &se)
}
