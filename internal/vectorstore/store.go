// Package vectorstore is the pgvector-backed gateway for node embeddings.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Store implements the ensure_collection/upsert/search/count contract over
// Postgres with the pgvector extension, generalizing the teacher's
// ChunkRepo from a per-user/per-document schema to the flatter node/parent
// schema this service uses.
type Store struct {
	pool       *pgxpool.Pool
	collection string
}

func NewStore(pool *pgxpool.Pool, collection string) *Store {
	if collection == "" {
		collection = "nodes"
	}
	return &Store{pool: pool, collection: collection}
}

// EnsureCollection creates the pgvector extension and backing tables if they
// do not already exist. Safe to call repeatedly and concurrently; each call
// runs in its own connection from the pool, per spec.md's no-locking
// concurrency model for the vector store.
func (s *Store) EnsureCollection(ctx context.Context, dimensions int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS parent_documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			source TEXT NOT NULL,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			len_characters INT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.collection, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops)`, s.collection, s.collection),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("vectorstore.EnsureCollection: %w", err)
		}
	}
	return nil
}

// Upsert stores nodes (with their embeddings) and their parent documents in
// a single pgx batch, matching the teacher's BulkInsert batching idiom.
func (s *Store) Upsert(ctx context.Context, nodes []model.Node, parents []model.ParentDocument) error {
	if len(nodes) == 0 && len(parents) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for _, p := range parents {
		batch.Queue(`
			INSERT INTO parent_documents (id, source, text, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text`,
			p.ID, p.Source, p.Text, now,
		)
	}

	insertNode := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, source, chunk_index, text, len_characters, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, embedding = EXCLUDED.embedding`, s.collection)

	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			return fmt.Errorf("vectorstore.Upsert: node %s has no embedding", n.ID)
		}
		batch.Queue(insertNode, n.ID, n.ParentID, n.Metadata["source"], n.ChunkIndex, n.Text, n.LenCharacters, pgvector.NewVector(n.Embedding), now)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	total := len(parents) + len(nodes)
	for i := 0; i < total; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("vectorstore.Upsert: statement %d: %w", i, err)
		}
	}
	return nil
}

// SearchResult is one ranked hit from Search.
type SearchResult struct {
	Node       model.Node
	Similarity float64
}

// Search returns the topK nodes most similar to queryVec by cosine
// similarity, filtered to those at or above threshold, generalizing the
// teacher's SimilaritySearch (dropping its per-user/privilege scoping,
// which is out of scope per spec.md's Non-goals).
func (s *Store) Search(ctx context.Context, queryVec []float32, topK int, threshold float64) ([]SearchResult, error) {
	embedding := pgvector.NewVector(queryVec)

	query := fmt.Sprintf(`
		SELECT id, parent_id, source, chunk_index, text, len_characters,
			1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE (1 - (embedding <=> $1::vector)) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.collection)

	rows, err := s.pool.Query(ctx, query, embedding, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("vectorstore.Search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		r.Node.Metadata = map[string]string{}
		var source string
		if err := rows.Scan(&r.Node.ID, &r.Node.ParentID, &source, &r.Node.ChunkIndex, &r.Node.Text, &r.Node.LenCharacters, &r.Similarity); err != nil {
			return nil, fmt.Errorf("vectorstore.Search: scan: %w", err)
		}
		r.Node.Metadata["source"] = source
		results = append(results, r)
	}

	slog.DebugContext(ctx, "vectorstore.Search complete", "results", len(results), "top_k", topK, "threshold", threshold)
	return results, nil
}

// Count returns the number of stored nodes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, s.collection)
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("vectorstore.Count: %w", err)
	}
	return count, nil
}
