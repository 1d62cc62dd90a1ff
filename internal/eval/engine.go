// Package eval implements the retrieval-quality evaluation workflow:
// generate ground-truth questions from a folder of documents, retrieve for
// each, and score hit rate / MRR against the known source document.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/legalrag-backend/internal/llm"
	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// Extractor pulls plain text out of a source document. Satisfied by
// internal/ingest.Extractor implementations.
type Extractor interface {
	Extract(ctx context.Context, filePath string) (string, error)
}

// QuestionGenerator synthesizes ground-truth questions from document text.
type QuestionGenerator interface {
	Generate(ctx context.Context, documentText string, n int) ([]llm.GeneratedQuestion, error)
}

// RetrievalEngine runs the retrieval flow being evaluated.
type RetrievalEngine interface {
	Retrieve(ctx context.Context, question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, error)
}

// StartRequest configures a new evaluation run, mirroring the original's
// StartEvaluationRequest.
type StartRequest struct {
	FolderPath         string
	TopK               int
	UseQueryEnhancer   bool
	UseReranking       bool
	NumQuestionsPerDoc int

	// SourceEvaluationID and QuestionGroupID are mutually exclusive ways to
	// reuse an existing question set instead of generating new ones.
	SourceEvaluationID string
	QuestionGroupID    string
}

// Engine orchestrates evaluation runs.
type Engine struct {
	extractor  Extractor
	questionGen QuestionGenerator
	retriever  RetrievalEngine
	repo       Repository
}

func NewEngine(extractor Extractor, questionGen QuestionGenerator, retriever RetrievalEngine, repo Repository) *Engine {
	return &Engine{extractor: extractor, questionGen: questionGen, retriever: retriever, repo: repo}
}

// Start validates the request, resolves (or creates) a question group,
// persists the pending Evaluation row, and runs the evaluation in the
// background. It returns immediately with the created Evaluation and
// whether its questions were reused from a prior run.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*model.Evaluation, bool, error) {
	if req.SourceEvaluationID != "" && req.QuestionGroupID != "" {
		return nil, false, fmt.Errorf("eval.Start: source_evaluation_id and question_group_id are mutually exclusive")
	}
	if req.FolderPath == "" && req.SourceEvaluationID == "" && req.QuestionGroupID == "" {
		return nil, false, fmt.Errorf("eval.Start: folder_path is required when not reusing a question group")
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}
	if req.NumQuestionsPerDoc <= 0 {
		req.NumQuestionsPerDoc = 1
	}

	questionGroupID := ""
	reused := false

	switch {
	case req.SourceEvaluationID != "":
		source, err := e.repo.GetEvaluation(ctx, req.SourceEvaluationID)
		if err != nil {
			return nil, false, fmt.Errorf("eval.Start: lookup source evaluation: %w", err)
		}
		if source == nil {
			return nil, false, fmt.Errorf("eval.Start: source evaluation not found: %s", req.SourceEvaluationID)
		}
		questionGroupID = source.QuestionGroupID
		reused = true
	case req.QuestionGroupID != "":
		exists, err := e.repo.QuestionGroupExists(ctx, req.QuestionGroupID)
		if err != nil {
			return nil, false, fmt.Errorf("eval.Start: lookup question group: %w", err)
		}
		if !exists {
			return nil, false, fmt.Errorf("eval.Start: no questions found for question_group_id: %s", req.QuestionGroupID)
		}
		questionGroupID = req.QuestionGroupID
		reused = true
	default:
		questionGroupID = uuid.NewString()
	}

	now := time.Now().UTC()
	evaluation := &model.Evaluation{
		ID:                 uuid.NewString(),
		QuestionGroupID:    questionGroupID,
		FolderPath:         req.FolderPath,
		TopK:               req.TopK,
		UseQueryEnhancer:   req.UseQueryEnhancer,
		UseReranking:       req.UseReranking,
		NumQuestionsPerDoc: req.NumQuestionsPerDoc,
		Status:             model.EvaluationStatusPending,
		CreatedAt:          now,
	}
	if err := e.repo.SaveEvaluation(ctx, evaluation); err != nil {
		return nil, false, fmt.Errorf("eval.Start: save evaluation: %w", err)
	}

	go e.run(context.WithoutCancel(ctx), evaluation, reused)

	return evaluation, reused, nil
}

func (e *Engine) run(ctx context.Context, evaluation *model.Evaluation, reuseQuestions bool) {
	evaluation.Status = model.EvaluationStatusRunning
	if err := e.repo.UpdateEvaluation(ctx, evaluation); err != nil {
		slog.Error("eval.run: update to running failed", "evaluation_id", evaluation.ID, "error", err)
	}

	questions, err := e.resolveQuestions(ctx, evaluation, reuseQuestions)
	if err != nil {
		e.fail(ctx, evaluation, err)
		return
	}

	evaluation.NumDocumentsProcessed = countDistinctSources(questions)
	if err := e.repo.UpdateEvaluation(ctx, evaluation); err != nil {
		slog.Error("eval.run: update documents processed failed", "evaluation_id", evaluation.ID, "error", err)
	}

	if len(questions) == 0 {
		e.fail(ctx, evaluation, fmt.Errorf("no questions available for evaluation"))
		return
	}

	results := make([]model.EvaluationResult, 0, len(questions))
	for i, q := range questions {
		slog.Info("eval.run: processing question", "evaluation_id", evaluation.ID, "index", i+1, "total", len(questions))

		retrieved, err := e.retriever.Retrieve(ctx, q.Question, evaluation.TopK, evaluation.UseQueryEnhancer, evaluation.UseReranking)
		if err != nil {
			slog.Warn("eval.run: retrieval failed for question", "question_id", q.ID, "error", err)
			retrieved = nil
		}

		retrievedSources := make([]string, 0, len(retrieved))
		for _, r := range retrieved {
			if src := r.Node.Metadata["source"]; src != "" {
				retrievedSources = append(retrievedSources, src)
			}
		}

		hit, rank := checkHitAndRank(q.SourceDocumentPath, retrievedSources)
		result := model.EvaluationResult{
			EvaluationID:       evaluation.ID,
			QuestionID:         q.ID,
			RetrievedDocuments: retrievedSources,
			Hit:                hit,
			Rank:               rank,
			CreatedAt:          time.Now().UTC(),
		}
		if err := e.repo.SaveResult(ctx, result); err != nil {
			slog.Error("eval.run: save result failed", "question_id", q.ID, "error", err)
		}
		results = append(results, result)
	}

	metrics := calculateAllMetrics(results)
	completedAt := time.Now().UTC()
	evaluation.Status = model.EvaluationStatusCompleted
	evaluation.CompletedAt = &completedAt
	evaluation.ResultsSummary = &metrics
	if err := e.repo.UpdateEvaluation(ctx, evaluation); err != nil {
		slog.Error("eval.run: final update failed", "evaluation_id", evaluation.ID, "error", err)
	}
}

func (e *Engine) resolveQuestions(ctx context.Context, evaluation *model.Evaluation, reuse bool) ([]model.Question, error) {
	if reuse {
		questions, err := e.repo.QuestionsByGroup(ctx, evaluation.QuestionGroupID)
		if err != nil {
			return nil, fmt.Errorf("resolve reused questions: %w", err)
		}
		return questions, nil
	}

	questions, err := e.generateQuestionsFromFolder(ctx, evaluation.FolderPath, evaluation.QuestionGroupID, evaluation.NumQuestionsPerDoc)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	if err := e.repo.SaveQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("save generated questions: %w", err)
	}
	return questions, nil
}

// generateQuestionsFromFolder extracts text from every PDF in folderPath and
// generates numPerDoc questions per document, matching the original
// generate_questions_from_folder's per-file degrade-and-continue behavior.
func (e *Engine) generateQuestionsFromFolder(ctx context.Context, folderPath, questionGroupID string, numPerDoc int) ([]model.Question, error) {
	files, err := filepath.Glob(filepath.Join(folderPath, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("list pdf files: %w", err)
	}

	var questions []model.Question
	for _, file := range files {
		text, err := e.extractor.Extract(ctx, file)
		if err != nil {
			slog.Warn("eval.generateQuestionsFromFolder: extract failed", "file", file, "error", err)
			continue
		}

		generated, err := e.questionGen.Generate(ctx, text, numPerDoc)
		if err != nil {
			slog.Warn("eval.generateQuestionsFromFolder: question generation failed", "file", file, "error", err)
			continue
		}

		for _, g := range generated {
			questions = append(questions, model.Question{
				ID:                 uuid.NewString(),
				QuestionGroupID:    questionGroupID,
				Question:           g.Question,
				GroundTruthText:    g.Fact,
				SourceDocumentPath: file,
				CreatedAt:          time.Now().UTC(),
			})
		}
	}
	return questions, nil
}

func (e *Engine) fail(ctx context.Context, evaluation *model.Evaluation, cause error) {
	slog.Error("eval.run: evaluation failed", "evaluation_id", evaluation.ID, "error", cause)
	completedAt := time.Now().UTC()
	evaluation.Status = model.EvaluationStatusFailed
	evaluation.ErrorMessage = cause.Error()
	evaluation.CompletedAt = &completedAt
	if err := e.repo.UpdateEvaluation(ctx, evaluation); err != nil {
		slog.Error("eval.run: update to failed failed", "evaluation_id", evaluation.ID, "error", err)
	}
}

// checkHitAndRank matches by filename rather than full path, since the
// retrieved source path may differ from the ground-truth path (absolute vs
// relative, different mount points) while still naming the same file.
func checkHitAndRank(sourcePath string, retrievedPaths []string) (bool, *int) {
	sourceName := filepath.Base(sourcePath)
	for i, p := range retrievedPaths {
		if filepath.Base(p) == sourceName {
			rank := i + 1
			return true, &rank
		}
	}
	return false, nil
}

func countDistinctSources(questions []model.Question) int {
	seen := make(map[string]bool)
	for _, q := range questions {
		seen[q.SourceDocumentPath] = true
	}
	return len(seen)
}
