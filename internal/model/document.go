// Package model holds the domain types shared across the retrieval service.
package model

import "time"

// ParentDocument is the full text of one ingested source file, referenced by
// its chunks via ParentID. Built once per unique source path during ingestion.
type ParentDocument struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is one unit of chunked text produced by a Chunker, prior to node
// construction and embedding.
type Chunk struct {
	Text          string `json:"text"`
	Source        string `json:"source"`
	Index         int    `json:"index"`
	LenCharacters int    `json:"len_characters"`
	PageNumber    int    `json:"page_number,omitempty"`
	SectionTitle  string `json:"section_title,omitempty"`
}

// Node is a leaf chunk after NodeBuilder assigns it an ID and links it to a
// ParentDocument. Nodes are what gets embedded and stored in the vector
// index.
type Node struct {
	ID            string            `json:"id"`
	ParentID      string            `json:"parent_id"`
	Text          string            `json:"text"`
	Embedding     []float32         `json:"-"`
	Metadata      map[string]string `json:"metadata"`
	ChunkIndex    int               `json:"chunk_index"`
	LenCharacters int               `json:"len_characters"`
}

// RetrievalResult pairs a retrieved node with the similarity score that
// surfaced it. Score is nil once it no longer reflects the final order —
// after LLM reranking, or when the pool was assembled from multiple
// query-enhancer variants whose scores aren't comparable.
type RetrievalResult struct {
	Node     Node              `json:"node"`
	Score    *float64          `json:"score"`
	Metadata RetrievalMetadata `json:"metadata"`
}

// RetrievalMetadata records which retrieval features shaped a result.
type RetrievalMetadata struct {
	Enhanced bool `json:"enhanced"`
	Reranked bool `json:"reranked"`
}
