package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/legalrag-backend/internal/handler"
	"github.com/connexus-ai/legalrag-backend/internal/middleware"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	DB          handler.DBPinger
	Redis       *redis.Client
	Version     string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry
	FrontendURL string

	// Chat
	ChatDeps handler.ChatDeps

	// Sessions
	Sessions handler.SessionLister

	// Retrieve
	Retriever handler.Retriever

	// Ingestion
	IngestionDeps handler.IngestionDeps

	// Evaluation
	EvaluationEngine handler.EvaluationStarter
	EvaluationRepo   handler.EvaluationReader
}

// New creates and configures the Chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	// Public routes
	r.Get("/api/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	timeout30s := middleware.Timeout(30 * time.Second)
	timeout60s := middleware.Timeout(60 * time.Second)

	// Chat — blocks on retrieval + generation, gets a longer timeout.
	r.With(timeout60s).Post("/api/chat", handler.Chat(deps.ChatDeps))

	// Sessions
	r.With(timeout30s).Get("/api/sessions/{id}", handler.GetSession(deps.Sessions))
	r.With(timeout30s).Get("/api/sessions", handler.ListSessions(deps.Sessions))

	// Retrieve
	r.With(timeout30s).Post("/api/retrieve", handler.Retrieve(deps.Retriever))

	// Ingestion — scheduling returns immediately, so the request-level
	// timeout only needs to cover enumeration, not the background fan-out.
	r.With(timeout30s).Post("/api/ingestion/start_job", handler.StartJob(deps.IngestionDeps))
	r.With(timeout30s).Post("/api/ingestion/start_single_file", handler.StartSingleFile(deps.IngestionDeps))
	r.With(timeout30s).Get("/api/ingestion/status/{job_id}", handler.JobStatus(deps.Redis))
	r.With(timeout30s).Get("/api/ingestion/jobs", handler.ListJobs(deps.Redis))

	// Evaluation — starting a run only schedules question generation and
	// scoring, so it shares the same short timeout as ingestion scheduling.
	r.With(timeout30s).Post("/api/evaluation/start", handler.StartEvaluation(deps.EvaluationEngine))
	r.With(timeout30s).Get("/api/evaluation/{id}", handler.GetEvaluationStatus(deps.EvaluationRepo))
	r.With(timeout30s).Get("/api/evaluations", handler.ListEvaluations(deps.EvaluationRepo))

	// 404 fallback
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
