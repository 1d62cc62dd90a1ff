package vectorstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

func setupStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}

	store := NewStore(pool, "test_nodes")
	if err := store.EnsureCollection(ctx, 3); err != nil {
		pool.Close()
		t.Fatalf("EnsureCollection: %v", err)
	}

	return store, func() {
		pool.Exec(context.Background(), "DROP TABLE IF EXISTS test_nodes")
		pool.Exec(context.Background(), "DELETE FROM parent_documents")
		pool.Close()
	}
}

func TestStore_UpsertAndSearch(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	nodes := []model.Node{
		{ID: "n1", ParentID: "p1", Text: "indemnification clause", LenCharacters: 23, Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"source": "c.pdf"}},
		{ID: "n2", ParentID: "p1", Text: "termination clause", LenCharacters: 19, Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"source": "c.pdf"}},
	}
	parents := []model.ParentDocument{{ID: "p1", Source: "c.pdf", Text: "full contract"}}

	if err := store.Upsert(ctx, nodes, parents); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].Node.ID != "n1" {
		t.Errorf("expected n1 as top result, got %+v", results)
	}
}
