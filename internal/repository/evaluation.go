package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// EvaluationRepository persists evaluations, question groups, and
// per-question results in Postgres. Implements internal/eval.Repository.
type EvaluationRepository struct {
	pool *pgxpool.Pool
}

func NewEvaluationRepository(pool *pgxpool.Pool) *EvaluationRepository {
	return &EvaluationRepository{pool: pool}
}

func (r *EvaluationRepository) SaveEvaluation(ctx context.Context, e *model.Evaluation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO evaluations (id, question_group_id, folder_path, top_k, use_query_enhancer,
			use_reranking, num_questions_per_doc, num_documents_processed, status, created_at,
			completed_at, results_summary, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.QuestionGroupID, e.FolderPath, e.TopK, e.UseQueryEnhancer, e.UseReranking,
		e.NumQuestionsPerDoc, e.NumDocumentsProcessed, e.Status, e.CreatedAt, e.CompletedAt,
		marshalNullable(e.ResultsSummary), nullString(e.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("repository.SaveEvaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) UpdateEvaluation(ctx context.Context, e *model.Evaluation) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE evaluations SET status=$2, num_documents_processed=$3, completed_at=$4,
			results_summary=$5, error_message=$6
		WHERE id=$1`,
		e.ID, e.Status, e.NumDocumentsProcessed, e.CompletedAt,
		marshalNullable(e.ResultsSummary), nullString(e.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateEvaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) GetEvaluation(ctx context.Context, evaluationID string) (*model.Evaluation, error) {
	var (
		e         model.Evaluation
		summary   []byte
		errMsg    *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, question_group_id, folder_path, top_k, use_query_enhancer, use_reranking,
			num_questions_per_doc, num_documents_processed, status, created_at, completed_at,
			results_summary, error_message
		FROM evaluations WHERE id = $1`, evaluationID,
	).Scan(&e.ID, &e.QuestionGroupID, &e.FolderPath, &e.TopK, &e.UseQueryEnhancer, &e.UseReranking,
		&e.NumQuestionsPerDoc, &e.NumDocumentsProcessed, &e.Status, &e.CreatedAt, &e.CompletedAt,
		&summary, &errMsg,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repository.GetEvaluation: %w", err)
	}
	if errMsg != nil {
		e.ErrorMessage = *errMsg
	}
	if len(summary) > 0 {
		var m model.EvaluationMetrics
		if err := json.Unmarshal(summary, &m); err != nil {
			return nil, fmt.Errorf("repository.GetEvaluation: unmarshal results_summary: %w", err)
		}
		e.ResultsSummary = &m
	}
	return &e, nil
}

func (r *EvaluationRepository) ListEvaluations(ctx context.Context, limit int) ([]model.Evaluation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question_group_id, folder_path, top_k, use_query_enhancer, use_reranking,
			num_questions_per_doc, num_documents_processed, status, created_at, completed_at,
			results_summary, error_message
		FROM evaluations ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.ListEvaluations: %w", err)
	}
	defer rows.Close()

	var out []model.Evaluation
	for rows.Next() {
		var (
			e       model.Evaluation
			summary []byte
			errMsg  *string
		)
		if err := rows.Scan(&e.ID, &e.QuestionGroupID, &e.FolderPath, &e.TopK, &e.UseQueryEnhancer,
			&e.UseReranking, &e.NumQuestionsPerDoc, &e.NumDocumentsProcessed, &e.Status, &e.CreatedAt,
			&e.CompletedAt, &summary, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("repository.ListEvaluations: scan: %w", err)
		}
		if errMsg != nil {
			e.ErrorMessage = *errMsg
		}
		if len(summary) > 0 {
			var m model.EvaluationMetrics
			if err := json.Unmarshal(summary, &m); err != nil {
				return nil, fmt.Errorf("repository.ListEvaluations: unmarshal results_summary: %w", err)
			}
			e.ResultsSummary = &m
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.ListEvaluations: %w", err)
	}
	return out, nil
}

func (r *EvaluationRepository) RelatedEvaluationIDs(ctx context.Context, questionGroupID, excludeEvaluationID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM evaluations WHERE question_group_id = $1 AND id != $2`,
		questionGroupID, excludeEvaluationID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.RelatedEvaluationIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository.RelatedEvaluationIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *EvaluationRepository) SaveQuestions(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(`
			INSERT INTO questions (id, question_group_id, question, ground_truth_text, source_document_path, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			q.ID, q.QuestionGroupID, q.Question, q.GroundTruthText, q.SourceDocumentPath, q.CreatedAt,
		)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range questions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.SaveQuestions: %w", err)
		}
	}
	return nil
}

func (r *EvaluationRepository) QuestionsByGroup(ctx context.Context, questionGroupID string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question_group_id, question, ground_truth_text, source_document_path, created_at
		FROM questions WHERE question_group_id = $1 ORDER BY created_at ASC`, questionGroupID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.QuestionsByGroup: %w", err)
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuestionGroupID, &q.Question, &q.GroundTruthText, &q.SourceDocumentPath, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.QuestionsByGroup: scan: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *EvaluationRepository) QuestionGroupExists(ctx context.Context, questionGroupID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM questions WHERE question_group_id = $1)`, questionGroupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository.QuestionGroupExists: %w", err)
	}
	return exists, nil
}

func (r *EvaluationRepository) SaveResult(ctx context.Context, res model.EvaluationResult) error {
	retrieved, err := json.Marshal(res.RetrievedDocuments)
	if err != nil {
		return fmt.Errorf("repository.SaveResult: marshal retrieved_documents: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO evaluation_results (evaluation_id, question_id, retrieved_documents, hit, rank, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		res.EvaluationID, res.QuestionID, retrieved, res.Hit, res.Rank, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.SaveResult: %w", err)
	}
	return nil
}

func marshalNullable(v *model.EvaluationMetrics) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
