package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int

	RedisURL      string
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	GCPProject          string
	GCPRegion           string
	VertexAILocation    string
	VertexAIModel       string
	EmbeddingLocation   string
	EmbeddingModel      string
	EmbeddingDimensions int
	GCSBucketName       string
	GCSSignedURLExpiry  string
	DocAIProcessorID    string
	DocAILocation       string

	FrontendURL string

	ChunkerName                     string
	ChunkSizeTokens                 int
	ChunkOverlapPercent             int
	VectorCollectionName            string
	RetrievalTopK                   int
	RetrievalSimilarityThreshold    float64
	EvaluationTopK                  int
	SessionHotTTLMinutes            int
	SessionMigrationIntervalMinutes int
	JobFinalizerIntervalSeconds     int
	IngestionConcurrency            int
	QueryCacheTTLMinutes            int

	PubSubTopicID string
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL, GOOGLE_CLOUD_PROJECT) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		RedisURL:      envStr("REDIS_URL", ""),
		RedisHost:     envStr("REDIS_HOST", "localhost"),
		RedisPort:     envInt("REDIS_PORT", 6379),
		RedisDB:       envInt("REDIS_DB", 0),
		RedisPassword: envStr("REDIS_PASSWORD", ""),

		GCPProject:          gcpProject,
		GCPRegion:           envStr("GCP_REGION", "us-east4"),
		VertexAILocation:    envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:       envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation:   envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:      envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),
		GCSBucketName:       envStr("GCS_BUCKET_NAME", ""),
		GCSSignedURLExpiry:  envStr("GCS_SIGNED_URL_EXPIRY", "15m"),
		DocAIProcessorID:    envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocAILocation:       envStr("DOCUMENT_AI_LOCATION", "us"),

		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),

		ChunkerName:                     envStr("CHUNKER_NAME", "recursive_overlap"),
		ChunkSizeTokens:                 envInt("CHUNK_SIZE_TOKENS", 768),
		ChunkOverlapPercent:             envInt("CHUNK_OVERLAP_PERCENT", 20),
		VectorCollectionName:            envStr("VECTOR_COLLECTION_NAME", "nodes"),
		RetrievalTopK:                   envInt("RETRIEVAL_TOP_K", 10),
		RetrievalSimilarityThreshold:    envFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.35),
		EvaluationTopK:                  envInt("EVALUATION_TOP_K", 10),
		SessionHotTTLMinutes:            envInt("SESSION_EXPIRY_MINUTES", 2),
		SessionMigrationIntervalMinutes: envInt("SESSION_MIGRATION_INTERVAL_MINUTES", 1),
		JobFinalizerIntervalSeconds:     envInt("JOB_FINALIZER_INTERVAL_SECONDS", 10),
		IngestionConcurrency:            envInt("INGESTION_CONCURRENCY", 4),
		QueryCacheTTLMinutes:            envInt("QUERY_CACHE_TTL_MINUTES", 10),

		PubSubTopicID: envStr("PUBSUB_TOPIC_ID", ""),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
