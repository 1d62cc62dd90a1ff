package chunk

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Propositionizer rewrites a block of text into a list of atomic,
// self-contained propositions. Modeled as an external seq2seq contract
// (backed by an LLM call in production); a nil Propositionizer falls back
// to sentence splitting, which is always a safe default.
type Propositionizer interface {
	Propose(ctx context.Context, text string) ([]string, error)
}

// SemanticEmbedder computes a vector for a piece of text, used here to measure the
// semantic distance between adjacent sentence windows.
type SemanticEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticChunker groups sentences into chunks at points where the cosine
// distance between a sliding window of sentences exceeds a percentile
// threshold, generalizing the teacher's header/paragraph-aware splitter
// with the propositioning + windowed-distance approach the original
// semantic chunker used.
type SemanticChunker struct {
	minTokens         int
	maxTokens         int
	propositionizer   Propositionizer
	embedder          SemanticEmbedder
	distancePercentile float64
}

// SemanticChunkerOptions configures an optional propositionizer/embedder
// pair; both are optional and degrade to heuristics when absent.
type SemanticChunkerOptions struct {
	MinTokens          int
	MaxTokens          int
	Propositionizer    Propositionizer
	Embedder           SemanticEmbedder
	DistancePercentile float64
}

func NewSemanticChunker(opts *SemanticChunkerOptions) *SemanticChunker {
	c := &SemanticChunker{minTokens: 512, maxTokens: 1024, distancePercentile: 0.95}
	if opts != nil {
		if opts.MinTokens > 0 {
			c.minTokens = opts.MinTokens
		}
		if opts.MaxTokens > 0 {
			c.maxTokens = opts.MaxTokens
		}
		if opts.DistancePercentile > 0 {
			c.distancePercentile = opts.DistancePercentile
		}
		c.propositionizer = opts.Propositionizer
		c.embedder = opts.Embedder
	}
	return c
}

var headerPattern = regexp.MustCompile(`^#{1,6}\s+\S`)

// windowBuffer is how many neighbouring sentences on each side are embedded
// together with a sentence when measuring semantic distance.
const windowBuffer = 1

func (c *SemanticChunker) Chunk(ctx context.Context, req Request) ([]model.Chunk, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("chunk.SemanticChunker: text is empty")
	}

	blocks := splitBlocks(req.Text)
	sentences := c.proposition(ctx, blocks)

	boundaries := c.breakpoints(ctx, sentences)

	var segs []string
	start := 0
	for _, b := range boundaries {
		segs = append(segs, strings.Join(sentences[start:b], " "))
		start = b
	}
	if start < len(sentences) {
		segs = append(segs, strings.Join(sentences[start:], " "))
	}

	segs = c.enforceTokenBounds(segs)
	segs = applySentenceOverlap(segs, 2)

	chunks := make([]model.Chunk, 0, len(segs))
	for _, s := range segs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		chunks = append(chunks, model.Chunk{
			Text:          s,
			Source:        req.Source,
			Index:         len(chunks),
			LenCharacters: len(s),
		})
	}
	return chunks, nil
}

// splitBlocks separates markdown headers from paragraph bodies; headers
// always start a new segment downstream.
func splitBlocks(text string) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var current strings.Builder
	for _, line := range lines {
		if headerPattern.MatchString(strings.TrimSpace(line)) {
			if current.Len() > 0 {
				blocks = append(blocks, current.String())
				current.Reset()
			}
			blocks = append(blocks, line)
			continue
		}
		if strings.TrimSpace(line) == "" && current.Len() > 0 {
			blocks = append(blocks, current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		blocks = append(blocks, current.String())
	}
	return blocks
}

// proposition turns each block into atomic sentences/propositions. When a
// Propositionizer is configured its output is used per block; malformed or
// empty responses degrade silently to sentence splitting for that block
// only, matching the teacher's parse-failure-degrades idiom.
func (c *SemanticChunker) proposition(ctx context.Context, blocks []string) []string {
	var out []string
	for _, b := range blocks {
		if c.propositionizer != nil {
			props, err := c.propositionizer.Propose(ctx, b)
			if err == nil && len(props) > 0 {
				out = append(out, props...)
				continue
			}
		}
		out = append(out, splitSentencesHeuristic(b)...)
	}
	return out
}

// breakpoints picks split indices using cosine distance between the
// embeddings of adjacent sentence windows (each sentence joined with
// windowBuffer neighbours on each side) when an embedder is configured; otherwise every
// header-leading sentence is a forced breakpoint and nothing else is,
// leaving token-bound enforcement to do the splitting.
func (c *SemanticChunker) breakpoints(ctx context.Context, sentences []string) []int {
	var bp []int
	for i, s := range sentences {
		if i > 0 && headerPattern.MatchString(strings.TrimSpace(s)) {
			bp = append(bp, i)
		}
	}
	if c.embedder == nil || len(sentences) < 3 {
		return bp
	}

	embeds := make([][]float32, len(sentences))
	for i := range sentences {
		lo, hi := max(0, i-windowBuffer), min(len(sentences), i+windowBuffer+1)
		v, err := c.embedder.Embed(ctx, strings.Join(sentences[lo:hi], " "))
		if err != nil {
			return bp
		}
		embeds[i] = v
	}

	distances := make([]float64, len(sentences)-1)
	for i := 0; i < len(sentences)-1; i++ {
		distances[i] = 1 - cosineSimilarity(embeds[i], embeds[i+1])
	}
	threshold := percentile(distances, c.distancePercentile)
	for i, d := range distances {
		if d >= threshold {
			bp = append(bp, i+1)
		}
	}
	sort.Ints(bp)
	return bp
}

func (c *SemanticChunker) enforceTokenBounds(segs []string) []string {
	var out []string
	var buf strings.Builder
	for _, s := range segs {
		if estimateTokens(buf.String()) > 0 && estimateTokens(buf.String())+estimateTokens(s) > c.maxTokens {
			out = append(out, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(s)
		if estimateTokens(buf.String()) >= c.minTokens {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

func applySentenceOverlap(segs []string, nSentences int) []string {
	if len(segs) <= 1 {
		return segs
	}
	out := make([]string, len(segs))
	out[0] = segs[0]
	for i := 1; i < len(segs); i++ {
		prevSentences := splitSentencesHeuristic(segs[i-1])
		n := nSentences
		if n > len(prevSentences) {
			n = len(prevSentences)
		}
		tailStr := strings.Join(prevSentences[len(prevSentences)-n:], " ")
		if tailStr != "" {
			out[i] = tailStr + " " + segs[i]
		} else {
			out[i] = segs[i]
		}
	}
	return out
}

func splitSentencesHeuristic(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		isEnd := r == '.' || r == '!' || r == '?'
		nextIsSpace := i+1 < len(runes) && runes[i+1] == ' '
		nextIsUpper := i+2 < len(runes) && isUpperLetter(runes[i+2])
		if isEnd && nextIsSpace && nextIsUpper {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	var nonEmpty []string
	for _, s := range sentences {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return nonEmpty
}

func isUpperLetter(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(strings.Fields(text))) * 1.3)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
