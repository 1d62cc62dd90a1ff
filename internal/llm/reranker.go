package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const rerankerSystemPrompt = `You rank a set of candidate documents by how
relevant each is to a question. Respond as JSON:
{"ranked_documents": [{"index": 0, "relevance_score": 0.0-1.0, "reasoning": "..."}]}
Include every index exactly once, ordered most to least relevant.`

// maxRerankCandidates caps how many documents are sent to the reranker in
// one call and how much of each is shown, matching the original reranking
// agent's N=20 candidate cap and 500-character excerpt truncation.
const (
	maxRerankCandidates  = 20
	rerankExcerptChars   = 500
)

type rankedDocumentJSON struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
	Reasoning      string  `json:"reasoning"`
}

type rerankResponseJSON struct {
	RankedDocuments []rankedDocumentJSON `json:"ranked_documents"`
}

// Reranker asks an LLM to reorder retrieved documents by relevance,
// distinct from a similarity-formula rerank: this is a second-pass
// judgment call over the candidate set, grounded on the original
// reranking agent's prompt/schema.
type Reranker struct {
	chat Chat
}

func NewReranker(chat Chat) *Reranker {
	return &Reranker{chat: chat}
}

// Rerank returns the subset of docs/sources reordered by relevance,
// truncated to topK. docs beyond maxRerankCandidates are dropped before the
// call (not scored at all) rather than silently mis-ranked. A malformed
// response degrades to the original order, truncated to topK.
func (r *Reranker) Rerank(ctx context.Context, query string, docs, sources []string, topK int) ([]string, []string, error) {
	if len(docs) != len(sources) {
		return nil, nil, fmt.Errorf("llm.Rerank: docs and sources length mismatch")
	}

	n := len(docs)
	if n > maxRerankCandidates {
		n = maxRerankCandidates
	}
	docs, sources = docs[:n], sources[:n]

	prompt := buildRerankPrompt(query, docs)
	raw, err := r.chat.GenerateContent(ctx, rerankerSystemPrompt, prompt)
	if err != nil {
		return truncate(docs, topK), truncate(sources, topK), fmt.Errorf("llm.Rerank: %w", err)
	}

	parsed, ok := parseJSON[rerankResponseJSON](raw)
	if !ok || len(parsed.RankedDocuments) == 0 {
		return truncate(docs, topK), truncate(sources, topK), nil
	}

	sort.SliceStable(parsed.RankedDocuments, func(i, j int) bool {
		return parsed.RankedDocuments[i].RelevanceScore > parsed.RankedDocuments[j].RelevanceScore
	})

	var rankedDocs, rankedSources []string
	seen := make(map[int]bool)
	for _, rd := range parsed.RankedDocuments {
		if rd.Index < 0 || rd.Index >= len(docs) || seen[rd.Index] {
			continue
		}
		seen[rd.Index] = true
		rankedDocs = append(rankedDocs, docs[rd.Index])
		rankedSources = append(rankedSources, sources[rd.Index])
		if len(rankedDocs) >= topK {
			break
		}
	}
	if len(rankedDocs) == 0 {
		return truncate(docs, topK), truncate(sources, topK), nil
	}
	return rankedDocs, rankedSources, nil
}

func buildRerankPrompt(query string, docs []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n\nCANDIDATES:\n", query)
	for i, d := range docs {
		excerpt := d
		if len(excerpt) > rerankExcerptChars {
			excerpt = excerpt[:rerankExcerptChars]
		}
		fmt.Fprintf(&sb, "[%d] %s\n\n", i, excerpt)
	}
	return sb.String()
}

func truncate(items []string, n int) []string {
	if n >= len(items) {
		return items
	}
	if n < 0 {
		n = 0
	}
	return items[:n]
}
