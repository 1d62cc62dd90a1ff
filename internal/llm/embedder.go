package llm

import (
	"context"
	"fmt"
)

// Embedder adapts an EmbeddingClient to the narrower document/query
// embedding contract the ingestion pipeline and retrieval engine need.
type Embedder struct {
	client EmbeddingClient
}

func NewEmbedder(client EmbeddingClient) *Embedder {
	return &Embedder{client: client}
}

// EmbedDocuments embeds node text at ingestion time (RETRIEVAL_DOCUMENT
// task type, via EmbedTexts).
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.client.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("llm.EmbedDocuments: %w", err)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string at retrieval time
// (RETRIEVAL_QUERY task type, via Embed).
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("llm.EmbedQuery: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("llm.EmbedQuery: no vector returned")
	}
	return vectors[0], nil
}
