package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/legalrag-backend/internal/jobs"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type stubResolver struct {
	processor jobs.DocumentProcessor
	err       error
}

func (s stubResolver) Resolve(pipelineType string) (jobs.DocumentProcessor, error) {
	return s.processor, s.err
}

func TestStartJob_EmptyFolderCompletesImmediately(t *testing.T) {
	dir := t.TempDir()
	deps := IngestionDeps{
		Redis:       newTestRedis(t),
		Resolver:    stubResolver{processor: jobs.ProcessorFunc(func(ctx context.Context, filePath string) error { return nil })},
		Concurrency: 2,
	}
	handler := StartJob(deps)

	body, _ := json.Marshal(startJobRequest{FolderPath: dir, FileTypes: []string{".pdf"}})
	req := httptest.NewRequest(http.MethodPost, "/ingestion/start_job", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool             `json:"success"`
		Data    startJobResponse `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Status != "completed" {
		t.Fatalf("status = %q, want completed", resp.Data.Status)
	}
}

func TestStartJob_MissingFolderMarksJobFailed(t *testing.T) {
	deps := IngestionDeps{
		Redis:       newTestRedis(t),
		Resolver:    stubResolver{processor: jobs.ProcessorFunc(func(ctx context.Context, filePath string) error { return nil })},
		Concurrency: 2,
	}
	handler := StartJob(deps)

	body, _ := json.Marshal(startJobRequest{FolderPath: "/no/such/folder", FileTypes: []string{".pdf"}})
	req := httptest.NewRequest(http.MethodPost, "/ingestion/start_job", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp struct {
		Data startJobResponse `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Status != "failed" {
		t.Fatalf("status = %q, want failed for missing folder", resp.Data.Status)
	}
}

func TestStartJob_UnknownPipelineRejected(t *testing.T) {
	deps := IngestionDeps{
		Redis:    newTestRedis(t),
		Resolver: stubResolver{err: fmt.Errorf("unknown pipeline_type")},
	}
	handler := StartJob(deps)

	body, _ := json.Marshal(startJobRequest{FolderPath: t.TempDir(), PipelineType: "bogus"})
	req := httptest.NewRequest(http.MethodPost, "/ingestion/start_job", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	client := newTestRedis(t)
	r := chi.NewRouter()
	r.Get("/ingestion/status/{job_id}", JobStatus(client))

	req := httptest.NewRequest(http.MethodGet, "/ingestion/status/missing-job", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListJobs_EmptyReturnsOK(t *testing.T) {
	client := newTestRedis(t)
	handler := ListJobs(client)

	req := httptest.NewRequest(http.MethodGet, "/ingestion/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
