package model

import "time"

// EvaluationStatus is the lifecycle state of an Evaluation run.
type EvaluationStatus string

const (
	EvaluationStatusPending   EvaluationStatus = "pending"
	EvaluationStatusRunning   EvaluationStatus = "running"
	EvaluationStatusCompleted EvaluationStatus = "completed"
	EvaluationStatusFailed    EvaluationStatus = "failed"
)

// Question is one ground-truth question generated against a source
// document, grouped by QuestionGroupID so question sets can be reused
// across evaluation runs that target the same corpus.
type Question struct {
	ID                 string    `json:"id"`
	QuestionGroupID    string    `json:"question_group_id"`
	Question           string    `json:"question"`
	GroundTruthText    string    `json:"ground_truth_text"`
	SourceDocumentPath string    `json:"source_document_path"`
	CreatedAt          time.Time `json:"created_at"`
}

// Evaluation is one retrieval-quality evaluation run over a question group.
type Evaluation struct {
	ID                    string           `json:"id"`
	QuestionGroupID       string           `json:"question_group_id"`
	FolderPath            string           `json:"folder_path"`
	TopK                  int              `json:"top_k"`
	UseQueryEnhancer      bool             `json:"use_query_enhancer"`
	UseReranking          bool             `json:"use_reranking"`
	NumQuestionsPerDoc    int              `json:"num_questions_per_doc"`
	NumDocumentsProcessed int              `json:"num_documents_processed"`
	Status                EvaluationStatus `json:"status"`
	CreatedAt             time.Time        `json:"created_at"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty"`
	ResultsSummary        *EvaluationMetrics `json:"results_summary,omitempty"`
	ErrorMessage          string           `json:"error_message,omitempty"`
}

// EvaluationResult is the retrieval outcome for a single question within
// an Evaluation.
type EvaluationResult struct {
	EvaluationID       string    `json:"evaluation_id"`
	QuestionID         string    `json:"question_id"`
	RetrievedDocuments []string  `json:"retrieved_documents"`
	Hit                bool      `json:"hit"`
	Rank               *int      `json:"rank,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// EvaluationMetrics is the aggregate scoring of one evaluation run.
type EvaluationMetrics struct {
	HitRate        float64            `json:"hit_rate"`
	HitRateAtK     map[int]float64    `json:"hit_rate_at_k"`
	MRR            float64            `json:"mrr"`
	TotalQuestions int                `json:"total_questions"`
	TotalHits      int                `json:"total_hits"`
}
