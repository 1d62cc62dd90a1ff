// Package jobs fans ingestion work out across a bounded worker pool and
// tracks each job's progress, generalizing the Celery group/apply_async
// pattern the original distributed task queue used into an in-process Go
// worker pool. The Broker implementations in this package are not used by
// Scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// DocumentProcessor processes one file path, returning an error if it
// failed. internal/ingest.Pipeline.ProcessDocument returns a richer Result;
// callers wrap it with ProcessorFunc to satisfy this interface.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, filePath string) error
}

// ProcessorFunc adapts a plain function to DocumentProcessor.
type ProcessorFunc func(ctx context.Context, filePath string) error

func (f ProcessorFunc) ProcessDocument(ctx context.Context, filePath string) error {
	return f(ctx, filePath)
}

// Tracker is the subset of internal/progress.Tracker the scheduler drives.
type Tracker interface {
	Initialize(ctx context.Context, total int, startTime time.Time) error
	IncrementProcessed(ctx context.Context, success bool, currentFile string, estimatedRemaining *int) error
	SetCompleted(ctx context.Context, successful, failed int, totalTime time.Duration) error
	SetFailed(ctx context.Context, errMsg string) error
}

// Scheduler runs a bounded-concurrency worker pool over a list of file
// paths, mirroring ingest_documents_task's "schedule independent subtasks,
// return immediately" behavior. Concurrency is capped rather than
// per-process, since Go goroutines replace Celery's worker processes.
type Scheduler struct {
	processor   DocumentProcessor
	concurrency int
}

func NewScheduler(processor DocumentProcessor, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Scheduler{processor: processor, concurrency: concurrency}
}

// Schedule fans filePaths out across the worker pool, reporting progress to
// tracker as each one finishes, and returns immediately with a job
// descriptor once work has been scheduled — the actual processing continues
// in the background goroutine this starts. An empty filePaths list
// completes the job immediately with zero documents, matching the
// original's "no files found" short-circuit.
func (s *Scheduler) Schedule(ctx context.Context, jobID string, filePaths []string, tracker Tracker) model.IngestionJob {
	start := time.Now()

	if len(filePaths) == 0 {
		_ = tracker.SetCompleted(ctx, 0, 0, time.Since(start))
		return model.IngestionJob{
			JobID:          jobID,
			Status:         model.JobStatusCompleted,
			TotalDocuments: 0,
			StartTime:      start,
			UpdatedAt:      time.Now(),
		}
	}

	if err := tracker.Initialize(ctx, len(filePaths), start); err != nil {
		return model.IngestionJob{JobID: jobID, Status: model.JobStatusFailed, ErrorMessage: err.Error()}
	}

	bg := context.WithoutCancel(ctx)
	bg, cancel := context.WithTimeout(bg, model.DefaultHardLimit)
	go s.run(bg, cancel, jobID, filePaths, tracker, start)

	return model.IngestionJob{
		JobID:          jobID,
		Status:         model.JobStatusProcessing,
		TotalDocuments: len(filePaths),
		DocumentsLeft:  len(filePaths),
		StartTime:      start,
		UpdatedAt:      time.Now(),
		HardLimit:      model.DefaultHardLimit,
		SoftLimit:      model.DefaultSoftLimit,
	}
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, jobID string, filePaths []string, tracker Tracker, start time.Time) {
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var successful, failed, processed atomic.Int64

	for _, path := range filePaths {
		path := path
		g.Go(func() error {
			err := s.processor.ProcessDocument(gctx, path)
			ok := err == nil
			if !ok {
				slog.ErrorContext(gctx, "jobs: document failed", "job_id", jobID, "path", path, "error", err)
			}

			done := processed.Add(1)
			remaining := estimateRemaining(start, int(done), len(filePaths))
			if trackErr := tracker.IncrementProcessed(gctx, ok, path, remaining); trackErr != nil {
				slog.ErrorContext(gctx, "jobs: failed to record progress", "job_id", jobID, "error", trackErr)
			}
			if ok {
				successful.Add(1)
			} else {
				failed.Add(1)
			}
			// Never abort the group on a single document's failure: each
			// subtask's outcome is independent, matching the original
			// per-subtask error handling in process_single_document_task.
			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		_ = tracker.SetFailed(context.Background(), fmt.Sprintf("job exceeded hard time limit of %s", model.DefaultHardLimit))
		return
	}
	_ = tracker.SetCompleted(context.Background(), int(successful.Load()), int(failed.Load()), time.Since(start))
}

// EnumerateFiles lists the top-level entries of folderPath whose extension
// matches one of fileTypes (case-insensitive), matching start_folder_job's
// enumeration step. Subdirectories are not descended into.
func EnumerateFiles(folderPath string, fileTypes []string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, fmt.Errorf("jobs.EnumerateFiles: %w", err)
	}

	wanted := make(map[string]bool, len(fileTypes))
	for _, ft := range fileTypes {
		ft = strings.ToLower(ft)
		if !strings.HasPrefix(ft, ".") {
			ft = "." + ft
		}
		wanted[ft] = true
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if len(wanted) == 0 || wanted[ext] {
			files = append(files, filepath.Join(folderPath, entry.Name()))
		}
	}
	return files, nil
}

func estimateRemaining(start time.Time, processed, total int) *int {
	if processed == 0 {
		return nil
	}
	elapsed := time.Since(start).Seconds()
	perDoc := elapsed / float64(processed)
	remaining := int(perDoc * float64(total-processed))
	return &remaining
}
