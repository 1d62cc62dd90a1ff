// Package llm defines the external LLM/embedding contracts used across
// ingestion and retrieval (chat generation, embeddings, query enhancement,
// reranking, question generation). The Vertex AI-backed adapters that
// satisfy them live in internal/gcpclient.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Chat generates text from a system/user prompt pair. Satisfied by
// internal/gcpclient.GenAIAdapter.
type Chat interface {
	GenerateContent(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EmbeddingClient embeds batches of text. Document and query embeddings use
// different task types asymmetrically (RETRIEVAL_DOCUMENT vs
// RETRIEVAL_QUERY), matching the teacher's gcpclient.EmbeddingAdapter.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// stripFences removes a surrounding markdown code fence, if present,
// exactly as the teacher's parseGenerationResponse does.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return strings.TrimSpace(cleaned)
}

// parseJSON unmarshals a (possibly fenced) LLM response into T, returning
// ok=false rather than an error when the response isn't valid JSON — every
// caller in this package treats a parse failure as a signal to degrade to a
// safe default, never to fail the whole operation.
func parseJSON[T any](raw string) (T, bool) {
	var out T
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}
