package ingest

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the ingestion engine.
// Every field maps to an environment variable; FromEnv applies defaults.
type Config struct {
	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// Embedding service
	EmbedEndpoint      string // sidecar base URL, e.g. http://embed:8001
	EmbeddingModel     string
	EmbeddingDim       int
	EmbeddingBatchSize int

	// Chunking budgets (tokens, cl100k_base)
	ChunkTargetTokens  int
	ChunkMinTokens     int
	ChunkMaxTokens     int
	ChunkHardCapTokens int

	// ArtifactBasePath is where extracted-block JSON artifacts are written.
	ArtifactBasePath string

	// Worker runtime
	MaxConcurrentJobs int
	WorkerPort        int
	InternalAuthToken string // empty disables bearer auth

	// StaleRunningMinutes is how long a running run may go without a
	// heartbeat before another worker may reclaim it.
	StaleRunningMinutes int

	// StartupSweepMinutes bounds the startup sweep: running runs whose
	// last heartbeat is older than this are failed as interrupted.
	StartupSweepMinutes int

	// QueuedTTLHours expires queued runs that were never claimed.
	// 0 disables the sweep.
	QueuedTTLHours int
}

// FromEnv loads configuration from environment variables with defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		EmbedEndpoint:      envOr("EMBED_ENDPOINT", "http://embed:8001"),
		EmbeddingModel:     envOr("EMBEDDING_MODEL", "BAAI/bge-base-en-v1.5"),
		EmbeddingDim:       envInt("EMBEDDING_DIM", 768),
		EmbeddingBatchSize: envInt("EMBEDDING_BATCH_SIZE", 256),

		ChunkTargetTokens:  envInt("CHUNK_TARGET_TOKENS", 450),
		ChunkMinTokens:     envInt("CHUNK_MIN_TOKENS", 350),
		ChunkMaxTokens:     envInt("CHUNK_MAX_TOKENS", 500),
		ChunkHardCapTokens: envInt("CHUNK_HARD_CAP_TOKENS", 800),

		ArtifactBasePath: envOr("ARTIFACT_BASE_PATH", "/data/artifacts"),

		MaxConcurrentJobs: envInt("WORKER_MAX_CONCURRENT_JOBS", 3),
		WorkerPort:        envInt("WORKER_PORT", 8002),
		InternalAuthToken: os.Getenv("INTERNAL_AUTH_TOKEN"),

		StaleRunningMinutes: envInt("STALE_RUNNING_MINUTES", 15),
		StartupSweepMinutes: envInt("STARTUP_SWEEP_MINUTES", 10),
		QueuedTTLHours:      envInt("QUEUED_TTL_HOURS", 24),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("%w: DATABASE_URL is required", ErrInvalidConfig)
	}
	if cfg.ChunkTargetTokens > cfg.ChunkMaxTokens || cfg.ChunkMaxTokens > cfg.ChunkHardCapTokens {
		return Config{}, fmt.Errorf("%w: chunk budgets must satisfy target <= max <= hard cap", ErrInvalidConfig)
	}
	if cfg.MaxConcurrentJobs < 1 {
		return Config{}, fmt.Errorf("%w: WORKER_MAX_CONCURRENT_JOBS must be >= 1", ErrInvalidConfig)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
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
