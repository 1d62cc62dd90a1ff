package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// GenerateOpts configures one answer-generation call.
type GenerateOpts struct {
	Mode string // "concise", "detailed", "risk-analysis"
}

// GenerationResult is a cited answer produced from retrieved context.
type GenerationResult struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
}

// Citation ties an inline citation number back to the node it came from.
type Citation struct {
	NodeIndex int     `json:"chunkIndex"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
}

type generationJSON struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Citations  []struct {
		ChunkIndex int     `json:"chunkIndex"`
		Excerpt    string  `json:"excerpt"`
		Relevance  float64 `json:"relevance"`
	} `json:"citations"`
}

const generatorSystemPrompt = `You are a legal research assistant. Answer only from the
provided context. Cite sources as [1], [2] referencing the numbered context
entries. Every factual claim needs a citation. If the context is
insufficient, say so rather than speculating. Respond as JSON:
{"answer": "...", "citations": [{"chunkIndex": 1, "excerpt": "...", "relevance": 0.9}], "confidence": 0.85}`

// Generator answers a question from retrieved nodes using a Chat model.
type Generator struct {
	chat Chat
}

func NewGenerator(chat Chat) *Generator {
	return &Generator{chat: chat}
}

// Generate produces a cited answer. A malformed model response degrades to
// a plain-text answer with no citations rather than failing the call,
// matching the teacher's parseGenerationResponse idiom.
func (g *Generator) Generate(ctx context.Context, query string, results []model.RetrievalResult, opts GenerateOpts) (*GenerationResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("llm.Generate: query is empty")
	}

	userPrompt := buildUserPrompt(query, results, opts.Mode)
	raw, err := g.chat.GenerateContent(ctx, generatorSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("llm.Generate: %w", err)
	}

	parsed, ok := parseJSON[generationJSON](raw)
	if !ok {
		return &GenerationResult{Answer: raw, Confidence: 0.5}, nil
	}

	citations := make([]Citation, 0, len(parsed.Citations))
	for _, c := range parsed.Citations {
		if c.ChunkIndex < 1 || c.ChunkIndex > len(results) {
			continue
		}
		citations = append(citations, Citation{NodeIndex: c.ChunkIndex, Excerpt: c.Excerpt, Relevance: c.Relevance})
	}

	confidence := parsed.Confidence
	if confidence <= 0 && len(citations) > 0 {
		confidence = min(1.0, float64(len(citations))*0.2)
	}

	return &GenerationResult{Answer: parsed.Answer, Citations: citations, Confidence: confidence}, nil
}



func buildUserPrompt(query string, results []model.RetrievalResult, mode string) string {
	var sb strings.Builder
	sb.WriteString("=== CONTEXT ===\n")
	for i, r := range results {
		if r.Score != nil {
			fmt.Fprintf(&sb, "[%d] (similarity: %.2f)\n%s\n\n", i+1, *r.Score, r.Node.Text)
		} else {
			fmt.Fprintf(&sb, "[%d]\n%s\n\n", i+1, r.Node.Text)
		}
	}
	sb.WriteString("=== QUESTION ===\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	switch mode {
	case "detailed":
		sb.WriteString("Provide a comprehensive analysis with full citations.\n")
	case "risk-analysis":
		sb.WriteString("Focus on risks, exposures, and obligations. Quantify where possible.\n")
	default:
		sb.WriteString("Provide a brief, focused answer with key citations.\n")
	}
	return sb.String()
}
