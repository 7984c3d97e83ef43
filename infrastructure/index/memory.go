package index

import (
	"errors"
	"math"
	"sort"
	"sync"
)

// Memory is an in-memory vector index over document node texts. Search is
// brute-force cosine similarity; with L2-normalized vectors that reduces
// to a dot product. It is safe for concurrent use, though the pipeline
// builds it once per document and only reads afterwards.
type Memory struct {
	mu      sync.RWMutex
	texts   []string
	vectors [][]float64
}

// Hit is one search result: a stored text and its similarity to the query.
type Hit struct {
	Text  string
	Score float64
}

// NewMemory returns an empty index.
func NewMemory() *Memory { return &Memory{} }

// Add appends texts with their vectors. Inputs must be the same length.
func (m *Memory) Add(texts []string, vectors [][]float64) error {
	if len(texts) != len(vectors) {
		return errors.New("texts and vectors length mismatch")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, texts...)
	m.vectors = append(m.vectors, vectors...)
	return nil
}

// Len reports the number of indexed nodes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.texts)
}

// Search returns the topK most similar stored texts to the query vector,
// best first. Fewer than topK results are returned when the index is
// smaller.
func (m *Memory) Search(vector []float64, topK int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 || len(m.vectors) == 0 {
		return nil
	}

	hits := make([]Hit, len(m.vectors))
	for i, v := range m.vectors {
		hits[i] = Hit{Text: m.texts[i], Score: dot(v, vector)}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK]
}

// Normalize scales v to unit length in place. Zero vectors are left
// untouched.
func Normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
