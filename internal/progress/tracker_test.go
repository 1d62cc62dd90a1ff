package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestTracker_InitializeAndIncrement(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tr := NewTracker(client, "job-1")

	if err := tr.Initialize(ctx, 3, time.Now()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	job, err := tr.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job == nil || job.TotalDocuments != 3 || job.DocumentsLeft != 3 {
		t.Fatalf("unexpected initial snapshot: %+v", job)
	}

	if err := tr.IncrementProcessed(ctx, true, "a.pdf", nil); err != nil {
		t.Fatalf("IncrementProcessed: %v", err)
	}
	if err := tr.IncrementProcessed(ctx, false, "b.pdf", nil); err != nil {
		t.Fatalf("IncrementProcessed: %v", err)
	}

	job, err = tr.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.ProcessedDocuments != 2 || job.SuccessfulDocuments != 1 || job.FailedDocuments != 1 {
		t.Fatalf("unexpected counts: %+v", job)
	}
	if job.DocumentsLeft != 1 {
		t.Errorf("DocumentsLeft = %d, want 1", job.DocumentsLeft)
	}
	wantPct := float64(200) / 3
	if job.ProgressPercentage < wantPct-1 || job.ProgressPercentage > wantPct+1 {
		t.Errorf("ProgressPercentage = %v, want ~%v", job.ProgressPercentage, wantPct)
	}
}

func TestTracker_SetCompletedCleansUpCounters(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tr := NewTracker(client, "job-2")

	if err := tr.Initialize(ctx, 2, time.Now()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := tr.SetCompleted(ctx, 2, 0, 5*time.Second); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}

	job, err := tr.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != "completed" || job.ProgressPercentage != 100 {
		t.Fatalf("unexpected terminal snapshot: %+v", job)
	}

	if exists, _ := client.Exists(ctx, tr.processedKey).Result(); exists != 0 {
		t.Error("expected processed counter to be cleaned up")
	}
}

func TestTracker_SetFailed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tr := NewTracker(client, "job-3")

	if err := tr.SetFailed(ctx, "folder not found"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	job, err := tr.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != "failed" || job.ErrorMessage != "folder not found" {
		t.Fatalf("unexpected failed snapshot: %+v", job)
	}
}

func TestTracker_GetMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tr := NewTracker(client, "does-not-exist")

	job, err := tr.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}
