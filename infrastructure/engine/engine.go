// Package engine answers questions about a single filing. It builds a
// vector index over the document's parsed page nodes (cached on disk, since
// parsing and embedding are the expensive half of the pipeline), retrieves
// the most relevant nodes for a query, and synthesizes an answer with the
// configured LLM.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tenqlab/filingqa/infrastructure/index"
	"github.com/tenqlab/filingqa/infrastructure/storage"
	"github.com/tenqlab/filingqa/internal/domain"
	"github.com/tenqlab/filingqa/internal/ports"
)

// DefaultTopK is the retrieval depth when none is configured.
const DefaultTopK = 5

const answerPromptTemplate = `Context information from a quarterly filing is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

// Parser converts a source document into markdown page nodes.
// *parse.Client satisfies it.
type Parser interface {
	Parse(ctx context.Context, documentPath string) ([]string, error)
}

// Config configures an Engine.
type Config struct {
	// DocumentPath is the filing the engine answers over. Required.
	DocumentPath string

	// Parser produces page nodes for the document. Required.
	Parser Parser

	// Embedder embeds nodes and queries. Required.
	Embedder ports.Embedder

	// LLM generates answers from retrieved context. Required.
	LLM ports.LLMClient

	// NodeCache persists parsed-and-embedded nodes between runs. Optional;
	// without it every engine build re-parses the document.
	NodeCache *storage.NodeCache

	// TopK is the number of nodes retrieved per query.
	TopK int
}

// Engine implements ports.AnswerEngine for one document. The index is built
// lazily on the first query and reused for the rest of the batch.
type Engine struct {
	documentPath string
	parser       Parser
	embedder     ports.Embedder
	llm          ports.LLMClient
	nodeCache    *storage.NodeCache
	topK         int

	mu  sync.Mutex
	idx *index.Memory
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.DocumentPath == "" {
		return nil, domain.ErrNoDocument
	}
	if cfg.Parser == nil {
		return nil, fmt.Errorf("engine: parser is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("engine: embedder is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("engine: llm client is required")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	return &Engine{
		documentPath: cfg.DocumentPath,
		parser:       cfg.Parser,
		embedder:     cfg.Embedder,
		llm:          cfg.LLM,
		nodeCache:    cfg.NodeCache,
		topK:         topK,
	}, nil
}

// DocumentID identifies the document this engine answers over.
func (e *Engine) DocumentID() string {
	return domain.DocumentID(e.documentPath)
}

// Answer retrieves the topK most relevant page nodes for queryText and asks
// the LLM to answer from them. The retrieval context is returned alongside
// the answer in retrieval order.
func (e *Engine) Answer(ctx context.Context, queryText string) (domain.Answer, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return domain.Answer{}, domain.ErrEmptyQuery
	}

	idx, err := e.buildIndex(ctx)
	if err != nil {
		return domain.Answer{}, err
	}

	vectors, err := e.embedder.EmbedTexts(ctx, []string{queryText})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return domain.Answer{}, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	hits := idx.Search(vectors[0], e.topK)
	retrieved := make([]string, len(hits))
	for i, hit := range hits {
		retrieved[i] = hit.Text
	}

	prompt := fmt.Sprintf(answerPromptTemplate, strings.Join(retrieved, "\n\n"), queryText)
	text, err := e.llm.Complete(ctx, prompt, nil)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return domain.Answer{Text: strings.TrimSpace(text), Context: retrieved}, nil
}

func (e *Engine) buildIndex(ctx context.Context) (*index.Memory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.idx != nil {
		return e.idx, nil
	}

	nodes, err := e.loadOrIndexNodes(ctx)
	if err != nil {
		return nil, err
	}

	idx := index.NewMemory()
	texts := make([]string, len(nodes))
	vectors := make([][]float64, len(nodes))
	for i, node := range nodes {
		texts[i] = node.Text
		vectors[i] = node.Vector
	}
	if err := idx.Add(texts, vectors); err != nil {
		return nil, err
	}

	e.idx = idx
	return idx, nil
}

func (e *Engine) loadOrIndexNodes(ctx context.Context) ([]storage.IndexedNode, error) {
	key := storage.NodeCacheKey(e.documentPath, e.llm.GetModel(), e.embedder.Model())

	if e.nodeCache != nil {
		nodes, ok, err := e.nodeCache.Load(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return nodes, nil
		}
	}

	texts, err := e.parser.Parse(ctx, e.documentPath)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", e.documentPath, err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("parse %s: document produced no nodes", e.documentPath)
	}

	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed nodes: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed nodes: expected %d vectors, got %d", len(texts), len(vectors))
	}

	nodes := make([]storage.IndexedNode, len(texts))
	for i := range texts {
		nodes[i] = storage.IndexedNode{Text: texts[i], Vector: vectors[i]}
	}

	if e.nodeCache != nil {
		if err := e.nodeCache.Save(key, nodes); err != nil {
			return nil, err
		}
	}

	return nodes, nil
}
