package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

type fakeTracker struct {
	mu   sync.Mutex
	job  model.IngestionJob
	done bool
}

func (f *fakeTracker) Initialize(ctx context.Context, total int, start time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = model.IngestionJob{TotalDocuments: total, DocumentsLeft: total, StartTime: start}
	return nil
}

func (f *fakeTracker) IncrementProcessed(ctx context.Context, success bool, currentFile string, estimatedRemaining *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job.ProcessedDocuments++
	if success {
		f.job.SuccessfulDocuments++
	} else {
		f.job.FailedDocuments++
	}
	return nil
}

func (f *fakeTracker) SetCompleted(ctx context.Context, successful, failed int, totalTime time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job.Status = model.JobStatusCompleted
	f.done = true
	return nil
}

func (f *fakeTracker) SetFailed(ctx context.Context, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job.Status = model.JobStatusFailed
	f.job.ErrorMessage = errMsg
	f.done = true
	return nil
}

func (f *fakeTracker) snapshot() model.IngestionJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.job
}

func (f *fakeTracker) isDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func waitDone(t *testing.T, tr *fakeTracker) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.isDone() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for job completion")
}

func TestScheduler_ProcessesAllFilesIndependently(t *testing.T) {
	processed := ProcessorFunc(func(ctx context.Context, filePath string) error {
		if filePath == "bad.pdf" {
			return fmt.Errorf("extraction failed")
		}
		return nil
	})
	sched := NewScheduler(processed, 2)
	tracker := &fakeTracker{}

	job := sched.Schedule(context.Background(), "job-1", []string{"a.pdf", "bad.pdf", "c.pdf"}, tracker)
	if job.Status != model.JobStatusProcessing {
		t.Fatalf("expected processing status immediately, got %s", job.Status)
	}

	waitDone(t, tracker)
	final := tracker.snapshot()
	if final.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed status, got %s", final.Status)
	}
	if final.SuccessfulDocuments != 2 || final.FailedDocuments != 1 {
		t.Fatalf("unexpected counts: %+v", final)
	}
}

func TestScheduler_EmptyFileListCompletesImmediately(t *testing.T) {
	sched := NewScheduler(ProcessorFunc(func(ctx context.Context, filePath string) error { return nil }), 2)
	tracker := &fakeTracker{}

	job := sched.Schedule(context.Background(), "job-2", nil, tracker)
	if job.Status != model.JobStatusCompleted || job.TotalDocuments != 0 {
		t.Fatalf("expected immediate completion with zero docs, got %+v", job)
	}
}

func TestEnumerateFiles_MatchesExtensionTopLevelOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PDF", "c.txt", "d.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "e.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write nested file: %v", err)
	}

	files, err := EnumerateFiles(dir, []string{".pdf"})
	if err != nil {
		t.Fatalf("EnumerateFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("EnumerateFiles = %v, want 3 pdf files", files)
	}
}

func TestEnumerateFiles_MissingFolder(t *testing.T) {
	if _, err := EnumerateFiles("/no/such/folder", []string{".pdf"}); err == nil {
		t.Fatal("expected error for missing folder")
	}
}
