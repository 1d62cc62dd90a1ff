package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Retriever is the subset of internal/retrieve.Engine the /retrieve
// endpoint needs.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, error)
}

type retrieveRequest struct {
	Query            string `json:"query"`
	TopK             int    `json:"top_k"`
	UseQueryEnhancer bool   `json:"use_query_enhancer"`
	UseReranking     bool   `json:"use_reranking"`
	PipelineType     string `json:"pipeline_type"`
}

type retrievedDocument struct {
	Text     string                  `json:"text"`
	Source   string                  `json:"source"`
	Score    *float64                `json:"score"`
	Metadata model.RetrievalMetadata `json:"metadata"`
}

type retrieveResponse struct {
	Documents []retrievedDocument `json:"documents"`
}

// Retrieve handles POST /retrieve: one-shot retrieval with no answer
// generation, used to inspect what context a query would surface.
func Retrieve(engine Retriever) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.Query == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
			return
		}
		topK := req.TopK
		if topK <= 0 {
			topK = 10
		}

		results, err := engine.Retrieve(r.Context(), req.Query, topK, req.UseQueryEnhancer, req.UseReranking)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("retrieve: %w", err))
			return
		}

		docs := make([]retrievedDocument, len(results))
		for i, res := range results {
			docs[i] = retrievedDocument{Text: res.Node.Text, Source: res.Node.Metadata["source"], Score: res.Score, Metadata: res.Metadata}
		}
		respondOK(w, retrieveResponse{Documents: docs})
	}
}
