package eval

import (
	"context"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Repository persists evaluations, their question groups, and per-question
// results. Implemented by internal/repository against Postgres.
type Repository interface {
	SaveEvaluation(ctx context.Context, e *model.Evaluation) error
	UpdateEvaluation(ctx context.Context, e *model.Evaluation) error
	GetEvaluation(ctx context.Context, evaluationID string) (*model.Evaluation, error)
	ListEvaluations(ctx context.Context, limit int) ([]model.Evaluation, error)
	RelatedEvaluationIDs(ctx context.Context, questionGroupID, excludeEvaluationID string) ([]string, error)

	SaveQuestions(ctx context.Context, questions []model.Question) error
	QuestionsByGroup(ctx context.Context, questionGroupID string) ([]model.Question, error)
	QuestionGroupExists(ctx context.Context, questionGroupID string) (bool, error)

	SaveResult(ctx context.Context, r model.EvaluationResult) error
}
