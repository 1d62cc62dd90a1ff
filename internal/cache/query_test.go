package cache

import (
	"testing"
	"time"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

func makeResults(text string) []model.RetrievalResult {
	score := 0.85
	return []model.RetrievalResult{
		{Node: model.Node{ID: "node-1", Text: text}, Score: &score},
	}
}

func TestQueryCache_GetSet(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	_, ok := c.Get("what is revenue?", 5, false, false)
	if ok {
		t.Fatal("expected cache miss on empty cache")
	}

	results := makeResults("revenue grew 10%")
	c.Set("what is revenue?", 5, false, false, results)

	got, ok := c.Get("what is revenue?", 5, false, false)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].Node.Text != "revenue grew 10%" {
		t.Fatalf("unexpected cached result: %+v", got)
	}
}

func TestQueryCache_OptionsSeparation(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query", 5, false, false, makeResults("plain"))
	c.Set("query", 5, true, true, makeResults("enhanced+reranked"))

	got, ok := c.Get("query", 5, false, false)
	if !ok || got[0].Node.Text != "plain" {
		t.Fatal("useEnhancer=false,useReranking=false returned wrong result")
	}

	got, ok = c.Get("query", 5, true, true)
	if !ok || got[0].Node.Text != "enhanced+reranked" {
		t.Fatal("useEnhancer=true,useReranking=true returned wrong result")
	}
}

func TestQueryCache_TopKSeparation(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query", 5, false, false, makeResults("top5"))

	_, ok := c.Get("query", 10, false, false)
	if ok {
		t.Fatal("different topK should miss")
	}
}

func TestQueryCache_Expiry(t *testing.T) {
	c := New(50 * time.Millisecond)
	defer c.Stop()

	c.Set("query", 5, false, false, makeResults("test"))

	_, ok := c.Get("query", 5, false, false)
	if !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get("query", 5, false, false)
	if ok {
		t.Fatal("expected cache miss after expiry")
	}
}

func TestQueryCache_Clear(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query-a", 5, false, false, makeResults("a"))
	c.Set("query-b", 5, false, false, makeResults("b"))

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected 0 entries after clear, got %d", c.Len())
	}
	if _, ok := c.Get("query-a", 5, false, false); ok {
		t.Fatal("cache should be empty after clear")
	}
}

func TestQueryCache_Len(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	if c.Len() != 0 {
		t.Fatal("expected empty cache")
	}

	c.Set("q1", 5, false, false, makeResults("a"))
	c.Set("q2", 5, false, false, makeResults("b"))

	if c.Len() != 2 {
		t.Fatalf("expected 2, got %d", c.Len())
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	k1 := cacheKey("hello world", 5, false, false)
	k2 := cacheKey("hello world", 5, false, false)
	if k1 != k2 {
		t.Fatalf("cache key should be deterministic: %s != %s", k1, k2)
	}

	k3 := cacheKey("hello world", 5, true, false)
	if k1 == k3 {
		t.Fatal("different useEnhancer should produce different key")
	}

	k4 := cacheKey("hello world", 10, false, false)
	if k1 == k4 {
		t.Fatal("different topK should produce different key")
	}
}
