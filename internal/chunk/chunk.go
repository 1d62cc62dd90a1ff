// Package chunk splits extracted document text into overlapping pieces
// suitable for embedding, using one of two interchangeable strategies.
package chunk

import (
	"context"
	"fmt"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Request is the input to a Chunker.
type Request struct {
	Text   string
	Source string
}

// Chunker splits one document's text into a sequence of model.Chunk values.
type Chunker interface {
	Chunk(ctx context.Context, req Request) ([]model.Chunk, error)
}

// NewByName constructs the named strategy, matching spec.md's closed set of
// chunking strategies. Unknown names are a configuration error, not a
// silent fallback.
func NewByName(name string, chunkSize int, overlapRatio float64) (Chunker, error) {
	switch name {
	case "", "recursive_overlap":
		return NewRecursiveOverlapChunker(chunkSize, overlapRatio), nil
	case "semantic":
		return NewSemanticChunker(nil), nil
	default:
		return nil, fmt.Errorf("chunk.NewByName: unknown strategy %q", name)
	}
}
