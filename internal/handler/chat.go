package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/connexus-ai/legalrag-backend/internal/llm"
	"github.com/connexus-ai/legalrag-backend/internal/middleware"
	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// SessionStore is the subset of internal/session.Store a chat handler needs.
type SessionStore interface {
	GetOrCreate(ctx context.Context, sessionID string) (*model.Session, error)
	AddMessage(ctx context.Context, sessionID string, msg model.Message) (*model.Session, error)
}

// ChatRetriever runs the retrieval flow behind a chat turn.
type ChatRetriever interface {
	Retrieve(ctx context.Context, question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, error)
}

// Answerer generates a cited answer from retrieved context.
type Answerer interface {
	Generate(ctx context.Context, query string, results []model.RetrievalResult, opts llm.GenerateOpts) (*llm.GenerationResult, error)
}

// ChatDeps wires the collaborators the /chat handler needs.
type ChatDeps struct {
	Sessions  SessionStore
	Retriever ChatRetriever
	Generator Answerer
	TopK      int
	Metrics   *middleware.Metrics
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

type chatSource struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Score  *float64 `json:"score"`
}

type chatResponse struct {
	Answer     string       `json:"answer"`
	SessionID  string       `json:"session_id"`
	Sources    []chatSource `json:"sources"`
	Confidence float64      `json:"confidence"`
}

const chatRetrieveTimeout = 30 * time.Second

// Chat handles POST /chat: it appends the user turn, retrieves supporting
// context, generates a cited answer, appends the assistant turn, and
// returns the answer with its session id and sources.
func Chat(deps ChatDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.Message == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), chatRetrieveTimeout)
		defer cancel()

		now := time.Now().UTC()
		sess, err := deps.Sessions.AddMessage(ctx, req.SessionID, model.Message{Role: "user", Content: req.Message, Timestamp: now})
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("append user message: %w", err))
			return
		}

		topK := deps.TopK
		if topK <= 0 {
			topK = 5
		}
		results, err := deps.Retriever.Retrieve(ctx, req.Message, topK, true, true)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("retrieve: %w", err))
			return
		}

		generated, err := deps.Generator.Generate(ctx, req.Message, results, llm.GenerateOpts{Mode: req.Mode})
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("generate: %w", err))
			return
		}
		if deps.Metrics != nil && generated.Confidence < 0.4 {
			deps.Metrics.IncrementLowConfidenceAnswer()
		}

		if _, err := deps.Sessions.AddMessage(ctx, sess.SessionID, model.Message{
			Role:      "assistant",
			Content:   generated.Answer,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("append assistant message: %w", err))
			return
		}

		sources := make([]chatSource, len(results))
		for i, res := range results {
			sources[i] = chatSource{Text: res.Node.Text, Source: res.Node.Metadata["source"], Score: res.Score}
		}

		respondOK(w, chatResponse{
			Answer:     generated.Answer,
			SessionID:  sess.SessionID,
			Sources:    sources,
			Confidence: generated.Confidence,
		})
	}
}
