package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/connexus-ai/legalrag-backend/internal/chunk"
	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Extractor pulls raw text out of a source file (PDF, docx, ...).
type Extractor interface {
	Extract(ctx context.Context, filePath string) (string, error)
}

// Embedder turns node text into vectors for storage.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists embedded nodes and their parent documents.
type VectorStore interface {
	Upsert(ctx context.Context, nodes []model.Node, parents []model.ParentDocument) error
}

// Result is the outcome of processing a single document.
type Result struct {
	Source     string
	ChunkCount int
	Err        error
}

// Pipeline implements the single-document ingestion sequence: extract,
// chunk, build nodes, embed, upsert. Generalizes the teacher's
// PipelineService.ProcessDocument step order, dropping the PII-scan step
// (no corresponding concern in this domain) and replacing GCS-URI/DB-row
// bookkeeping with plain filesystem paths, matching the original ingestion
// pipeline's operating model.
type Pipeline struct {
	extractor Extractor
	chunker   chunk.Chunker
	embedder  Embedder
	store     VectorStore

	mu         sync.Mutex
	processing map[string]bool
}

func NewPipeline(extractor Extractor, chunker chunk.Chunker, embedder Embedder, store VectorStore) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		processing: make(map[string]bool),
	}
}

// ProcessDocument runs the full pipeline for one file path. Concurrent calls
// for the same path are rejected rather than double-processed, mirroring
// the teacher's processingMu/processing guard.
func (p *Pipeline) ProcessDocument(ctx context.Context, filePath string) Result {
	if !p.acquire(filePath) {
		return Result{Source: filePath, Err: fmt.Errorf("ingest.ProcessDocument: %s is already being processed", filePath)}
	}
	defer p.release(filePath)

	slog.InfoContext(ctx, "ingest: extracting", "source", filePath)
	text, err := p.extractor.Extract(ctx, filePath)
	if err != nil {
		return Result{Source: filePath, Err: fmt.Errorf("ingest.ProcessDocument: extract: %w", err)}
	}

	chunks, err := p.chunker.Chunk(ctx, chunk.Request{Text: text, Source: filePath})
	if err != nil {
		return Result{Source: filePath, Err: fmt.Errorf("ingest.ProcessDocument: chunk: %w", err)}
	}

	nodes, parents := BuildNodes(chunks, map[string]string{filePath: text})

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return Result{Source: filePath, Err: fmt.Errorf("ingest.ProcessDocument: embed: %w", err)}
	}
	if len(embeddings) != len(nodes) {
		return Result{Source: filePath, Err: fmt.Errorf("ingest.ProcessDocument: embed returned %d vectors for %d nodes", len(embeddings), len(nodes))}
	}
	for i := range nodes {
		nodes[i].Embedding = embeddings[i]
	}

	if err := p.store.Upsert(ctx, nodes, parents); err != nil {
		return Result{Source: filePath, Err: fmt.Errorf("ingest.ProcessDocument: upsert: %w", err)}
	}

	slog.InfoContext(ctx, "ingest: completed", "source", filePath, "chunks", len(nodes))
	return Result{Source: filePath, ChunkCount: len(nodes)}
}

func (p *Pipeline) acquire(filePath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processing[filePath] {
		return false
	}
	p.processing[filePath] = true
	return true
}

func (p *Pipeline) release(filePath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.processing, filePath)
}
