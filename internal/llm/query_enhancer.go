package llm

import (
	"context"
	"fmt"
)

const queryEnhancerSystemPrompt = `You rewrite a user's question into multiple
alternative phrasings that capture different ways the same information might
be expressed in a legal document corpus, to improve retrieval recall.
Respond as JSON: {"enhanced_queries": ["...", "..."]}`

type enhancedQueriesJSON struct {
	EnhancedQueries []string `json:"enhanced_queries"`
}

// QueryEnhancer rewrites one query into several alternative phrasings,
// grounded on the original query_enhancer agent's prompt contract.
type QueryEnhancer struct {
	chat Chat
}

func NewQueryEnhancer(chat Chat) *QueryEnhancer {
	return &QueryEnhancer{chat: chat}
}

// Enhance returns the original query plus any well-formed rewrites. A
// malformed or empty model response degrades to just the original query,
// never failing the caller's retrieval flow.
func (q *QueryEnhancer) Enhance(ctx context.Context, query string) ([]string, error) {
	raw, err := q.chat.GenerateContent(ctx, queryEnhancerSystemPrompt, query)
	if err != nil {
		return []string{query}, fmt.Errorf("llm.Enhance: %w", err)
	}

	parsed, ok := parseJSON[enhancedQueriesJSON](raw)
	if !ok || len(parsed.EnhancedQueries) == 0 {
		return []string{query}, nil
	}

	queries := append([]string{query}, parsed.EnhancedQueries...)
	return queries, nil
}
