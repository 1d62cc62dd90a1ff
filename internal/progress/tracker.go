// Package progress tracks ingestion job progress in Redis using atomic
// counters, so concurrent subtasks can report completion without a
// coordinator.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// snapshotTTL matches the original tracker's 1-hour expiry on both the
// counters and the main progress snapshot.
const snapshotTTL = time.Hour

// Tracker mirrors the distributed-task progress tracker: one atomic counter
// key per processed/successful/failed count, plus a JSON snapshot rewritten
// after every increment.
type Tracker struct {
	client      *redis.Client
	jobID       string
	progressKey string
	processedKey string
	successfulKey string
	failedKey    string
}

func NewTracker(client *redis.Client, jobID string) *Tracker {
	return &Tracker{
		client:        client,
		jobID:         jobID,
		progressKey:   fmt.Sprintf("ingestion_progress:%s", jobID),
		processedKey:  fmt.Sprintf("ingestion_processed:%s", jobID),
		successfulKey: fmt.Sprintf("ingestion_successful:%s", jobID),
		failedKey:     fmt.Sprintf("ingestion_failed:%s", jobID),
	}
}

// Initialize sets up the atomic counters and the initial snapshot for a new
// job. Called once by the job scheduler before fan-out begins.
func (t *Tracker) Initialize(ctx context.Context, total int, startTime time.Time) error {
	pipe := t.client.Pipeline()
	pipe.Set(ctx, t.processedKey, 0, snapshotTTL)
	pipe.Set(ctx, t.successfulKey, 0, snapshotTTL)
	pipe.Set(ctx, t.failedKey, 0, snapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress.Initialize: %w", err)
	}

	job := model.IngestionJob{
		JobID:          t.jobID,
		Status:         model.JobStatusProcessing,
		TotalDocuments: total,
		DocumentsLeft:  total,
		CurrentFile:    "Starting parallel processing...",
		StartTime:      startTime,
		UpdatedAt:      time.Now(),
	}
	return t.writeSnapshot(ctx, job)
}

// IncrementProcessed atomically bumps the processed and
// successful-or-failed counters, recomputes percentage/documents-left from
// the authoritative counter values, and rewrites the snapshot. Called by
// each worker after it finishes one document.
func (t *Tracker) IncrementProcessed(ctx context.Context, success bool, currentFile string, estimatedRemaining *int) error {
	pipe := t.client.TxPipeline()
	processedIncr := pipe.Incr(ctx, t.processedKey)
	if success {
		pipe.Incr(ctx, t.successfulKey)
	} else {
		pipe.Incr(ctx, t.failedKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress.IncrementProcessed: %w", err)
	}

	processed := processedIncr.Val()
	successful, _ := t.client.Get(ctx, t.successfulKey).Int64()
	failed, _ := t.client.Get(ctx, t.failedKey).Int64()

	current, err := t.Get(ctx)
	if err != nil {
		return fmt.Errorf("progress.IncrementProcessed: %w", err)
	}
	if current == nil {
		// Job may have been cleaned up already; nothing to update.
		return nil
	}

	total := current.TotalDocuments
	var pct float64
	if total > 0 {
		pct = math.Round(float64(processed)/float64(total)*10000) / 100
	}
	left := total - int(processed)
	if left < 0 {
		left = 0
	}

	job := model.IngestionJob{
		JobID:                     t.jobID,
		Status:                    model.JobStatusProcessing,
		TotalDocuments:            total,
		ProcessedDocuments:        int(processed),
		SuccessfulDocuments:       int(successful),
		FailedDocuments:           int(failed),
		DocumentsLeft:             left,
		CurrentFile:               currentFile,
		EstimatedTimeRemainingSec: estimatedRemaining,
		ProgressPercentage:        pct,
		StartTime:                 current.StartTime,
		UpdatedAt:                 time.Now(),
	}
	return t.writeSnapshot(ctx, job)
}

// SetCompleted marks the job terminal-successful and cleans up the atomic
// counters, matching the original tracker's set_completed.
func (t *Tracker) SetCompleted(ctx context.Context, successful, failed int, totalTime time.Duration) error {
	job := model.IngestionJob{
		JobID:               t.jobID,
		Status:              model.JobStatusCompleted,
		TotalDocuments:      successful + failed,
		ProcessedDocuments:  successful + failed,
		SuccessfulDocuments: successful,
		FailedDocuments:     failed,
		DocumentsLeft:       0,
		ProgressPercentage:  100,
		TotalTimeSeconds:    totalTime.Seconds(),
		UpdatedAt:           time.Now(),
	}
	if err := t.writeSnapshot(ctx, job); err != nil {
		return err
	}
	return t.cleanupCounters(ctx)
}

// SetFailed marks the job terminal-failed and cleans up the atomic counters.
func (t *Tracker) SetFailed(ctx context.Context, errMsg string) error {
	job := model.IngestionJob{
		JobID:        t.jobID,
		Status:       model.JobStatusFailed,
		ErrorMessage: errMsg,
		UpdatedAt:    time.Now(),
	}
	if err := t.writeSnapshot(ctx, job); err != nil {
		return err
	}
	return t.cleanupCounters(ctx)
}

// Get returns the current snapshot, or nil if it has expired or never
// existed.
func (t *Tracker) Get(ctx context.Context) (*model.IngestionJob, error) {
	raw, err := t.client.Get(ctx, t.progressKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress.Get: %w", err)
	}
	var job model.IngestionJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, nil
	}
	return &job, nil
}

func (t *Tracker) writeSnapshot(ctx context.Context, job model.IngestionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("progress.writeSnapshot: %w", err)
	}
	if err := t.client.Set(ctx, t.progressKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("progress.writeSnapshot: %w", err)
	}
	return nil
}

func (t *Tracker) cleanupCounters(ctx context.Context) error {
	pipe := t.client.Pipeline()
	pipe.Del(ctx, t.processedKey)
	pipe.Del(ctx, t.successfulKey)
	pipe.Del(ctx, t.failedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress.cleanupCounters: %w", err)
	}
	return nil
}
