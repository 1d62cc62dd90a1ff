package model

import "time"

// JobStatus is the lifecycle state of an IngestionJob.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IngestionJob tracks a single folder- or file-ingestion run. Mirrors the
// fields written to the progress snapshot by internal/progress.Tracker.
type IngestionJob struct {
	JobID                     string     `json:"job_id"`
	Status                    JobStatus  `json:"status"`
	TotalDocuments            int        `json:"total_documents"`
	ProcessedDocuments        int        `json:"processed_documents"`
	SuccessfulDocuments       int        `json:"successful_documents"`
	FailedDocuments           int        `json:"failed_documents"`
	DocumentsLeft             int        `json:"documents_left"`
	CurrentFile               string     `json:"current_file,omitempty"`
	ProgressPercentage        float64    `json:"progress_percentage"`
	EstimatedTimeRemainingSec *int       `json:"estimated_time_remaining_seconds,omitempty"`
	StartTime                 time.Time  `json:"start_time"`
	UpdatedAt                 time.Time  `json:"updated_at"`
	TotalTimeSeconds          float64    `json:"total_time_seconds,omitempty"`
	ErrorMessage              string     `json:"error_message,omitempty"`

	// HardLimit/SoftLimit record the job's time limits, mirroring Celery's
	// task_time_limit/task_soft_time_limit. The scheduler enforces only the
	// hard limit (DefaultHardLimit, as a context deadline), marking the job
	// failed when it expires; nothing acts on SoftLimit.
	HardLimit time.Duration `json:"-"`
	SoftLimit time.Duration `json:"-"`
}

// DefaultHardLimit and DefaultSoftLimit match the Celery configuration this
// scheduler is modeled on: a 24-hour hard ceiling and a 23-hour soft limit
// (recorded only; no warning is emitted when it passes).
const (
	DefaultHardLimit = 24 * time.Hour
	DefaultSoftLimit = 23 * time.Hour
)
