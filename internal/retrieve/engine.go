// Package retrieve implements the multi-query retrieval flow: embed,
// search, fuse, dedupe, and optionally enhance/rerank with an LLM.
package retrieve

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/legalrag-backend/internal/model"
	"github.com/connexus-ai/legalrag-backend/internal/vectorstore"
)

// ResultCache caches retrieval results keyed by question and retrieval options, so
// repeated questions skip the embed+search round trip. Satisfied by
// internal/cache.QueryCache.
type ResultCache interface {
	Get(question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, bool)
	Set(question string, topK int, useEnhancer, useReranking bool, results []model.RetrievalResult)
}

const defaultTopK = 20

// QueryEmbedder embeds one query string (RETRIEVAL_QUERY task type).
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a vector similarity search. Satisfied by
// internal/vectorstore.Store.
type Searcher interface {
	Search(ctx context.Context, queryVec []float32, topK int, threshold float64) ([]vectorstore.SearchResult, error)
}

// Enhancer rewrites a query into several alternative phrasings.
type Enhancer interface {
	Enhance(ctx context.Context, query string) ([]string, error)
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs, sources []string, topK int) ([]string, []string, error)
}

// BM25Searcher is an optional hybrid full-text search path, left unwired by
// default; when set, its results are fused with vector search via
// Reciprocal Rank Fusion instead of vector-only ranking.
type BM25Searcher interface {
	FullTextSearch(ctx context.Context, query string, topK int) ([]vectorstore.SearchResult, error)
}

// Engine runs the full retrieval flow against a single collection.
type Engine struct {
	embedder QueryEmbedder
	searcher Searcher
	enhancer Enhancer
	reranker Reranker
	bm25     BM25Searcher
	cache    ResultCache
}

func NewEngine(embedder QueryEmbedder, searcher Searcher) *Engine {
	return &Engine{embedder: embedder, searcher: searcher}
}

func (e *Engine) SetEnhancer(enh Enhancer)  { e.enhancer = enh }
func (e *Engine) SetReranker(r Reranker)    { e.reranker = r }
func (e *Engine) SetBM25(bm25 BM25Searcher) { e.bm25 = bm25 }
func (e *Engine) SetCache(c ResultCache)    { e.cache = c }

// Retrieve embeds the question (optionally enhanced into several
// phrasings), searches each concurrently, fuses and deduplicates the
// candidates, optionally reranks with an LLM, and returns the top topK
// results.
func (e *Engine) Retrieve(ctx context.Context, question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, error) {
	if question == "" {
		return nil, fmt.Errorf("retrieve.Retrieve: question is empty")
	}
	if topK <= 0 {
		topK = 5
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(question, topK, useEnhancer, useReranking); ok {
			return cached, nil
		}
	}

	queries := []string{question}
	enhanced := false
	if useEnhancer && e.enhancer != nil {
		if variants, err := e.enhancer.Enhance(ctx, question); err == nil && len(variants) > 0 {
			queries = variants
			enhanced = true
		}
	}

	candidates, err := e.searchAll(ctx, queries, topK, useReranking)
	if err != nil {
		return nil, fmt.Errorf("retrieve.Retrieve: %w", err)
	}

	if e.bm25 != nil {
		bm25Results, err := e.bm25.FullTextSearch(ctx, question, defaultTopK)
		if err == nil && len(bm25Results) > 0 {
			candidates = reciprocalRankFusion(candidates, bm25Results)
		}
	} else {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	}

	deduped := dedupe(candidates)

	results := make([]model.RetrievalResult, len(deduped))
	for i, c := range deduped {
		sim := c.Similarity
		results[i] = model.RetrievalResult{Node: c.Node, Score: &sim}
	}

	reranked := false
	if useReranking && e.reranker != nil && len(results) > 0 {
		results = e.applyRerank(ctx, question, results, topK)
		reranked = true
	}

	if topK < len(results) {
		results = results[:topK]
	}

	metadata := model.RetrievalMetadata{Enhanced: enhanced, Reranked: reranked}
	for i := range results {
		if reranked || enhanced {
			results[i].Score = nil
		}
		results[i].Metadata = metadata
	}

	if e.cache != nil {
		e.cache.Set(question, topK, useEnhancer, useReranking, results)
	}
	return results, nil
}

// searchAll embeds and searches each query concurrently, matching the
// teacher's errgroup-based vector+BM25 fan-out idiom generalized to N
// concurrent query variants instead of two fixed search backends. Per-query
// k follows spec.md §4.9: max(4, (top_k/num_queries)×2) when reranking,
// else max(2, top_k/num_queries). The store is searched without a
// similarity floor so `min(top_k, store_count)` results always come back.
func (e *Engine) searchAll(ctx context.Context, queries []string, topK int, useReranking bool) ([]vectorstore.SearchResult, error) {
	numQueries := len(queries)
	perQueryK := max(2, topK/numQueries)
	if useReranking {
		perQueryK = max(4, (topK/numQueries)*2)
	}

	resultsByQuery := make([][]vectorstore.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			vec, err := e.embedder.EmbedQuery(gctx, q)
			if err != nil {
				return fmt.Errorf("embed query %q: %w", q, err)
			}
			res, err := e.searcher.Search(gctx, vec, perQueryK, 0)
			if err != nil {
				return fmt.Errorf("search query %q: %w", q, err)
			}
			resultsByQuery[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []vectorstore.SearchResult
	for _, r := range resultsByQuery {
		all = append(all, r...)
	}
	return all, nil
}

func (e *Engine) applyRerank(ctx context.Context, question string, results []model.RetrievalResult, topK int) []model.RetrievalResult {
	docs := make([]string, len(results))
	idByDoc := make(map[string]int, len(results))
	for i, r := range results {
		docs[i] = r.Node.Text
		idByDoc[r.Node.Text] = i
	}
	sources := make([]string, len(results))
	copy(sources, docs)

	rankedDocs, _, err := e.reranker.Rerank(ctx, question, docs, sources, topK)
	if err != nil || len(rankedDocs) == 0 {
		return results
	}

	reordered := make([]model.RetrievalResult, 0, len(rankedDocs))
	for _, d := range rankedDocs {
		if idx, ok := idByDoc[d]; ok {
			reordered = append(reordered, results[idx])
		}
	}
	if len(reordered) == 0 {
		return results
	}
	return reordered
}

// dedupe keeps the first (highest-scoring, since candidates are pre-sorted)
// occurrence of each exact node text, per spec.md §4.9 — there is no
// per-parent-document cap.
func dedupe(candidates []vectorstore.SearchResult) []vectorstore.SearchResult {
	seenText := make(map[string]bool)
	var out []vectorstore.SearchResult
	for _, c := range candidates {
		if seenText[c.Node.Text] {
			continue
		}
		seenText[c.Node.Text] = true
		out = append(out, c)
	}
	return out
}

// reciprocalRankFusion combines two ranked lists using RRF (k=60), the
// teacher's hybrid-search fusion formula, generalized from chunk IDs to
// node IDs.
func reciprocalRankFusion(a, b []vectorstore.SearchResult) []vectorstore.SearchResult {
	const k = 60
	scores := make(map[string]float64)
	items := make(map[string]vectorstore.SearchResult)

	for rank, item := range a {
		scores[item.Node.ID] += 1.0 / float64(k+rank+1)
		if _, ok := items[item.Node.ID]; !ok {
			items[item.Node.ID] = item
		}
	}
	for rank, item := range b {
		scores[item.Node.ID] += 1.0 / float64(k+rank+1)
		if _, ok := items[item.Node.ID]; !ok {
			items[item.Node.ID] = item
		}
	}

	type scored struct {
		item  vectorstore.SearchResult
		score float64
	}
	var sorted []scored
	for id, item := range items {
		sorted = append(sorted, scored{item, scores[id]})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	out := make([]vectorstore.SearchResult, len(sorted))
	for i, s := range sorted {
		out[i] = s.item
	}
	return out
}
