package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/legalrag-backend/internal/jobs"
	"github.com/connexus-ai/legalrag-backend/internal/model"
	"github.com/connexus-ai/legalrag-backend/internal/progress"
)

// PipelineResolver maps a pipeline_type string to the document processor
// that implements it, so a request can pick recursive_overlap vs semantic
// chunking without the handler knowing about internal/ingest.Pipeline.
type PipelineResolver interface {
	Resolve(pipelineType string) (jobs.DocumentProcessor, error)
}

// IngestionDeps wires the collaborators the ingestion endpoints need.
type IngestionDeps struct {
	Redis       *redis.Client
	Resolver    PipelineResolver
	Concurrency int
}

type startJobRequest struct {
	FolderPath   string   `json:"folder_path"`
	FileTypes    []string `json:"file_types"`
	PipelineType string   `json:"pipeline_type"`
}

type startSingleFileRequest struct {
	FilePath     string `json:"file_path"`
	FileType     string `json:"file_type"`
	PipelineType string `json:"pipeline_type"`
}

type startJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StartJob handles POST /ingestion/start_job: enumerates files under
// folder_path matching file_types, fans them out to the scheduler, and
// returns immediately with the job id.
func StartJob(deps IngestionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.FolderPath == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("folder_path is required"))
			return
		}

		processor, err := deps.Resolver.Resolve(req.PipelineType)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}

		jobID := uuid.NewString()
		tracker := progress.NewTracker(deps.Redis, jobID)

		files, err := jobs.EnumerateFiles(req.FolderPath, req.FileTypes)
		if err != nil {
			_ = tracker.SetFailed(r.Context(), err.Error())
			respondOK(w, startJobResponse{JobID: jobID, Status: string(model.JobStatusFailed)})
			return
		}

		scheduler := jobs.NewScheduler(processor, deps.Concurrency)
		job := scheduler.Schedule(r.Context(), jobID, files, tracker)

		respondOK(w, startJobResponse{JobID: jobID, Status: string(job.Status)})
	}
}

// StartSingleFile handles POST /ingestion/start_single_file: the same
// fan-out path as StartJob with a file list of exactly one entry.
func StartSingleFile(deps IngestionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSingleFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.FilePath == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("file_path is required"))
			return
		}

		processor, err := deps.Resolver.Resolve(req.PipelineType)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}

		jobID := uuid.NewString()
		tracker := progress.NewTracker(deps.Redis, jobID)
		scheduler := jobs.NewScheduler(processor, deps.Concurrency)
		job := scheduler.Schedule(r.Context(), jobID, []string{req.FilePath}, tracker)

		respondOK(w, startJobResponse{JobID: jobID, Status: string(job.Status)})
	}
}

// JobStatus handles GET /ingestion/status/{job_id}.
func JobStatus(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")
		if jobID == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("job_id is required"))
			return
		}
		tracker := progress.NewTracker(redisClient, jobID)
		snapshot, err := tracker.Get(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("get job status: %w", err))
			return
		}
		if snapshot == nil {
			respondError(w, http.StatusNotFound, fmt.Errorf("job not found: %s", jobID))
			return
		}
		respondOK(w, snapshot)
	}
}

// ListJobs handles GET /ingestion/jobs: scans the KV store for active
// ingestion progress snapshots.
func ListJobs(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var (
			cursor uint64
			jobsOut []model.IngestionJob
		)
		for {
			keys, next, err := redisClient.Scan(ctx, cursor, "ingestion_progress:*", 100).Result()
			if err != nil {
				respondError(w, http.StatusInternalServerError, fmt.Errorf("scan jobs: %w", err))
				return
			}
			for _, key := range keys {
				raw, err := redisClient.Get(ctx, key).Result()
				if err != nil {
					continue
				}
				var job model.IngestionJob
				if err := json.Unmarshal([]byte(raw), &job); err != nil {
					continue
				}
				jobsOut = append(jobsOut, job)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		respondOK(w, jobsOut)
	}
}
