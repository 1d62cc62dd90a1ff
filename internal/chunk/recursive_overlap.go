package chunk

import (
	"context"
	"fmt"
	"strings"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// separatorCascade is tried in order when a segment still exceeds chunkSize;
// each step recurses into a finer-grained unit before falling back to a hard
// character slice.
var separatorCascade = []string{"\n\n", "\n", ". ", " "}

// RecursiveOverlapChunker splits text on a separator cascade (paragraph,
// line, sentence, word) and slides a character-count overlap between
// adjacent chunks, generalizing the teacher's token-estimate chunker to the
// character-based contract this service needs.
type RecursiveOverlapChunker struct {
	chunkSize    int
	overlapRatio float64
}

// NewRecursiveOverlapChunker builds a chunker targeting chunkSize characters
// per chunk with overlapRatio [0,1) of the previous chunk's tail carried
// into the next. Defaults to 1000/0.2 when given invalid values, matching
// the teacher's defensive-default idiom in chunker.go.
func NewRecursiveOverlapChunker(chunkSize int, overlapRatio float64) *RecursiveOverlapChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlapRatio < 0 || overlapRatio >= 1 {
		overlapRatio = 0.2
	}
	return &RecursiveOverlapChunker{chunkSize: chunkSize, overlapRatio: overlapRatio}
}

func (c *RecursiveOverlapChunker) Chunk(ctx context.Context, req Request) ([]model.Chunk, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("chunk.RecursiveOverlapChunker: text is empty")
	}

	pieces := c.split(req.Text, 0)
	overlapChars := int(float64(c.chunkSize) * c.overlapRatio)

	chunks := make([]model.Chunk, 0, len(pieces))
	prevTail := ""
	for _, piece := range pieces {
		content := piece
		if prevTail != "" {
			content = prevTail + content
			if len(content) > c.chunkSize {
				content = tail(content, c.chunkSize)
			}
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		chunks = append(chunks, model.Chunk{
			Text:          content,
			Source:        req.Source,
			Index:         len(chunks),
			LenCharacters: len(content),
		})
		prevTail = tail(piece, overlapChars)
	}

	return chunks, nil
}

// split recursively breaks text into pieces no larger than chunkSize,
// trying each separator in separatorCascade before falling back to a hard
// slice at the character boundary.
func (c *RecursiveOverlapChunker) split(text string, sepIdx int) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}
	if sepIdx >= len(separatorCascade) {
		return hardSlice(text, c.chunkSize)
	}

	sep := separatorCascade[sepIdx]
	units := strings.Split(text, sep)
	if len(units) <= 1 {
		return c.split(text, sepIdx+1)
	}

	var pieces []string
	var current strings.Builder
	for _, unit := range units {
		candidate := unit
		if current.Len() > 0 {
			candidate = current.String() + sep + unit
		}
		if len(candidate) > c.chunkSize && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			current.WriteString(unit)
			continue
		}
		current.Reset()
		current.WriteString(candidate)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	// Any piece still oversized (a single unit bigger than chunkSize) recurses
	// one level deeper.
	var final []string
	for _, p := range pieces {
		if len(p) > c.chunkSize {
			final = append(final, c.split(p, sepIdx+1)...)
		} else {
			final = append(final, p)
		}
	}
	return final
}

func hardSlice(text string, size int) []string {
	var out []string
	for len(text) > 0 {
		if len(text) <= size {
			out = append(out, text)
			break
		}
		out = append(out, text[:size])
		text = text[size:]
	}
	return out
}

// tail returns the last n characters of s, never splitting mid-rune.
func tail(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}
