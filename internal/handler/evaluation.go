package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/legalrag-backend/internal/eval"
	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// EvaluationStarter is the subset of internal/eval.Engine the /evaluation/start
// endpoint needs.
type EvaluationStarter interface {
	Start(ctx context.Context, req eval.StartRequest) (*model.Evaluation, bool, error)
}

// EvaluationReader is the subset needed to serve read endpoints.
type EvaluationReader interface {
	GetEvaluation(ctx context.Context, evaluationID string) (*model.Evaluation, error)
	ListEvaluations(ctx context.Context, limit int) ([]model.Evaluation, error)
	RelatedEvaluationIDs(ctx context.Context, questionGroupID, excludeEvaluationID string) ([]string, error)
}

type startEvaluationRequest struct {
	FolderPath         string `json:"folder_path"`
	TopK               int    `json:"top_k"`
	UseQueryEnhancer   bool   `json:"use_query_enhancer"`
	UseReranking       bool   `json:"use_reranking"`
	NumQuestionsPerDoc int    `json:"num_questions_per_doc"`
	SourceEvaluationID string `json:"source_evaluation_id"`
	QuestionGroupID    string `json:"question_group_id"`
}

type startEvaluationResponse struct {
	EvaluationID    string `json:"evaluation_id"`
	QuestionGroupID string `json:"question_group_id"`
	Status          string `json:"status"`
	QuestionsReused bool   `json:"questions_reused"`
}

// StartEvaluation handles POST /evaluation/start.
func StartEvaluation(engine EvaluationStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startEvaluationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		evaluation, reused, err := engine.Start(r.Context(), eval.StartRequest{
			FolderPath:         req.FolderPath,
			TopK:               req.TopK,
			UseQueryEnhancer:   req.UseQueryEnhancer,
			UseReranking:       req.UseReranking,
			NumQuestionsPerDoc: req.NumQuestionsPerDoc,
			SourceEvaluationID: req.SourceEvaluationID,
			QuestionGroupID:    req.QuestionGroupID,
		})
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}

		respondOK(w, startEvaluationResponse{
			EvaluationID:    evaluation.ID,
			QuestionGroupID: evaluation.QuestionGroupID,
			Status:          string(evaluation.Status),
			QuestionsReused: reused,
		})
	}
}

type evaluationDetail struct {
	model.Evaluation
	RelatedEvaluationIDs []string `json:"related_evaluation_ids"`
}

// GetEvaluationStatus handles GET /evaluation/{id}.
func GetEvaluationStatus(repo EvaluationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("evaluation id is required"))
			return
		}
		evaluation, err := repo.GetEvaluation(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("get evaluation: %w", err))
			return
		}
		if evaluation == nil {
			respondError(w, http.StatusNotFound, fmt.Errorf("evaluation not found: %s", id))
			return
		}
		related, err := repo.RelatedEvaluationIDs(r.Context(), evaluation.QuestionGroupID, evaluation.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("related evaluations: %w", err))
			return
		}
		respondOK(w, evaluationDetail{Evaluation: *evaluation, RelatedEvaluationIDs: related})
	}
}

// ListEvaluations handles GET /evaluations?limit=N.
func ListEvaluations(repo EvaluationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		evaluations, err := repo.ListEvaluations(r.Context(), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("list evaluations: %w", err))
			return
		}
		respondOK(w, evaluations)
	}
}
