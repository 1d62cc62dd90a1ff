// Package ingest turns parsed document text into stored, embedded nodes.
package ingest

import (
	"github.com/google/uuid"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// BuildNodes groups chunks by source, assigns one UUID per unique source as
// the parent ID and one UUID per chunk as the node ID, and links each leaf
// node back to its parent. A parent document is only emitted for sources
// that have non-empty full text in parentTexts, matching the original
// node-builder's truthy-text check.
func BuildNodes(chunks []model.Chunk, parentTexts map[string]string) ([]model.Node, []model.ParentDocument) {
	sourceToParentID := make(map[string]string)
	for _, c := range chunks {
		if _, ok := sourceToParentID[c.Source]; !ok {
			sourceToParentID[c.Source] = uuid.NewString()
		}
	}

	var parents []model.ParentDocument
	for source, parentID := range sourceToParentID {
		text := parentTexts[source]
		if text == "" {
			continue
		}
		parents = append(parents, model.ParentDocument{
			ID:     parentID,
			Source: source,
			Text:   text,
		})
	}

	nodes := make([]model.Node, 0, len(chunks))
	for idx, c := range chunks {
		parentID, ok := sourceToParentID[c.Source]
		if !ok {
			parentID = uuid.NewString()
		}
		nodes = append(nodes, model.Node{
			ID:            uuid.NewString(),
			ParentID:      parentID,
			Text:          c.Text,
			ChunkIndex:    idx,
			LenCharacters: c.LenCharacters,
			Metadata: map[string]string{
				"source": c.Source,
			},
		})
	}

	return nodes, parents
}
