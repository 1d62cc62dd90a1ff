package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/legalrag-backend/internal/cache"
	"github.com/connexus-ai/legalrag-backend/internal/chunk"
	"github.com/connexus-ai/legalrag-backend/internal/config"
	"github.com/connexus-ai/legalrag-backend/internal/eval"
	"github.com/connexus-ai/legalrag-backend/internal/gcpclient"
	"github.com/connexus-ai/legalrag-backend/internal/handler"
	"github.com/connexus-ai/legalrag-backend/internal/ingest"
	"github.com/connexus-ai/legalrag-backend/internal/jobs"
	"github.com/connexus-ai/legalrag-backend/internal/llm"
	"github.com/connexus-ai/legalrag-backend/internal/middleware"
	"github.com/connexus-ai/legalrag-backend/internal/repository"
	"github.com/connexus-ai/legalrag-backend/internal/retrieve"
	"github.com/connexus-ai/legalrag-backend/internal/router"
	"github.com/connexus-ai/legalrag-backend/internal/session"
	"github.com/connexus-ai/legalrag-backend/internal/vectorstore"
)

const Version = "0.1.0"

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

// docAIClientAdapter narrows internal/gcpclient.DocumentAIAdapter's richer
// response (which also carries extracted entities) down to the plain
// text/page-count shape internal/ingest.DocumentAIClient expects.
type docAIClientAdapter struct {
	adapter *gcpclient.DocumentAIAdapter
}

func (a docAIClientAdapter) ProcessDocument(ctx context.Context, processor, gcsURI, mimeType string) (*ingest.DocumentAIResponse, error) {
	resp, err := a.adapter.ProcessDocument(ctx, processor, gcsURI, mimeType)
	if err != nil {
		return nil, err
	}
	return &ingest.DocumentAIResponse{Text: resp.Text, Pages: resp.Pages}, nil
}

// pipelineResolver dispatches a pipeline_type string to the ingestion
// pipeline built around the matching chunker, satisfying
// internal/handler.PipelineResolver.
type pipelineResolver struct {
	pipelines map[string]jobs.DocumentProcessor
	fallback  string
}

func (r pipelineResolver) Resolve(pipelineType string) (jobs.DocumentProcessor, error) {
	if pipelineType == "" {
		pipelineType = r.fallback
	}
	p, ok := r.pipelines[pipelineType]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline_type %q", pipelineType)
	}
	return p, nil
}

func buildPipelines(cfg *config.Config, extractor *ingest.DocumentAIExtractor, embedder *llm.Embedder, store *vectorstore.Store, queryCache *cache.QueryCache) (map[string]jobs.DocumentProcessor, error) {
	overlapRatio := float64(cfg.ChunkOverlapPercent) / 100.0
	// Chunkers take chunk size in characters; the configured token budget is
	// converted at about 3.5 characters per token.
	chunkSizeChars := int(float64(cfg.ChunkSizeTokens) * 3.5)
	pipelines := make(map[string]jobs.DocumentProcessor, 2)

	for _, name := range []string{"recursive_overlap", "semantic"} {
		chunker, err := chunk.NewByName(name, chunkSizeChars, overlapRatio)
		if err != nil {
			return nil, fmt.Errorf("buildPipelines: %w", err)
		}
		pipeline := ingest.NewPipeline(extractor, chunker, embedder, store)
		pipelines[name] = jobs.ProcessorFunc(func(ctx context.Context, filePath string) error {
			result := pipeline.ProcessDocument(ctx, filePath)
			if result.Err == nil && queryCache != nil {
				queryCache.Clear()
			}
			return result.Err
		})
	}
	return pipelines, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	ctx := context.Background()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("run: connect postgres: %w", err)
	}
	defer pool.Close()

	redisOpts := &redis.Options{Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort), DB: cfg.RedisDB, Password: cfg.RedisPassword}
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("run: parse REDIS_URL: %w", err)
		}
		redisOpts = parsed
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	store := vectorstore.NewStore(pool, cfg.VectorCollectionName)
	if err := store.EnsureCollection(ctx, cfg.EmbeddingDimensions); err != nil {
		return fmt.Errorf("run: ensure vector collection: %w", err)
	}

	storageAdapter, err := gcpclient.NewStorageAdapter(ctx)
	if err != nil {
		return fmt.Errorf("run: storage adapter: %w", err)
	}
	defer storageAdapter.Close()

	docAIAdapter, err := gcpclient.NewDocumentAIAdapter(ctx, cfg.GCPProject, cfg.DocAILocation)
	if err != nil {
		return fmt.Errorf("run: document ai adapter: %w", err)
	}
	defer docAIAdapter.Close()

	embeddingAdapter, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("run: embedding adapter: %w", err)
	}

	genAIAdapter, err := gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		return fmt.Errorf("run: genai adapter: %w", err)
	}
	defer genAIAdapter.Close()

	embedder := llm.NewEmbedder(embeddingAdapter)
	generator := llm.NewGenerator(genAIAdapter)
	enhancer := llm.NewQueryEnhancer(genAIAdapter)
	reranker := llm.NewReranker(genAIAdapter)
	questionGen := llm.NewQuestionGenerator(genAIAdapter)

	extractor := ingest.NewDocumentAIExtractor(docAIClientAdapter{adapter: docAIAdapter}, cfg.DocAIProcessorID, storageAdapter)

	queryCache := cache.New(time.Duration(cfg.QueryCacheTTLMinutes) * time.Minute)
	defer queryCache.Stop()

	retrievalEngine := retrieve.NewEngine(embedder, store)
	retrievalEngine.SetEnhancer(enhancer)
	retrievalEngine.SetReranker(reranker)
	retrievalEngine.SetCache(queryCache)

	sessionStore := session.NewStore(redisClient, session.NewPostgresColdStore(pool), time.Duration(cfg.SessionHotTTLMinutes)*time.Minute)
	migrator := session.NewMigrator(sessionStore, time.Duration(cfg.SessionMigrationIntervalMinutes)*time.Minute)
	go migrator.Run(ctx)

	evalRepo := repository.NewEvaluationRepository(pool)
	evalEngine := eval.NewEngine(extractor, questionGen, retrievalEngine, evalRepo)

	pipelines, err := buildPipelines(cfg, extractor, embedder, store, queryCache)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	resolver := pipelineResolver{pipelines: pipelines, fallback: cfg.ChunkerName}

	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	deps := &router.Dependencies{
		DB:          pool,
		Redis:       redisClient,
		Version:     Version,
		Metrics:     metrics,
		MetricsReg:  metricsReg,
		FrontendURL: cfg.FrontendURL,
		ChatDeps: handler.ChatDeps{
			Sessions:  sessionStore,
			Retriever: retrievalEngine,
			Generator: generator,
			TopK:      cfg.RetrievalTopK,
			Metrics:   metrics,
		},
		Sessions:  sessionStore,
		Retriever: retrievalEngine,
		IngestionDeps: handler.IngestionDeps{
			Redis:       redisClient,
			Resolver:    resolver,
			Concurrency: cfg.IngestionConcurrency,
		},
		EvaluationEngine: evalEngine,
		EvaluationRepo:   evalRepo,
	}

	r := router.New(deps)

	srv := &http.Server{
		Addr:         ":" + getPort(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("legalrag-backend v%s starting on port %s", Version, getPort())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down gracefully", sig)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
