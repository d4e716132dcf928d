package ingest

import (
	"errors"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.EmbedEndpoint != "http://embed:8001" {
		t.Errorf("EmbedEndpoint = %q", cfg.EmbedEndpoint)
	}
	if cfg.EmbeddingModel != "BAAI/bge-base-en-v1.5" {
		t.Errorf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d", cfg.EmbeddingDim)
	}
	if cfg.ChunkTargetTokens != 450 || cfg.ChunkMaxTokens != 500 || cfg.ChunkHardCapTokens != 800 {
		t.Errorf("chunk budgets = %d/%d/%d, want 450/500/800",
			cfg.ChunkTargetTokens, cfg.ChunkMaxTokens, cfg.ChunkHardCapTokens)
	}
	if cfg.MaxConcurrentJobs != 3 {
		t.Errorf("MaxConcurrentJobs = %d", cfg.MaxConcurrentJobs)
	}
	if cfg.StaleRunningMinutes != 15 {
		t.Errorf("StaleRunningMinutes = %d", cfg.StaleRunningMinutes)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("CHUNK_TARGET_TOKENS", "100")
	t.Setenv("CHUNK_MAX_TOKENS", "120")
	t.Setenv("CHUNK_HARD_CAP_TOKENS", "200")
	t.Setenv("WORKER_MAX_CONCURRENT_JOBS", "8")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ChunkTargetTokens != 100 || cfg.ChunkMaxTokens != 120 || cfg.ChunkHardCapTokens != 200 {
		t.Errorf("chunk budgets = %d/%d/%d, want 100/120/200",
			cfg.ChunkTargetTokens, cfg.ChunkMaxTokens, cfg.ChunkHardCapTokens)
	}
	if cfg.MaxConcurrentJobs != 8 {
		t.Errorf("MaxConcurrentJobs = %d, want 8", cfg.MaxConcurrentJobs)
	}
}

func TestFromEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestFromEnvRejectsInvertedBudgets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("CHUNK_TARGET_TOKENS", "600")
	t.Setenv("CHUNK_MAX_TOKENS", "500")
	if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestFromEnvRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("WORKER_MAX_CONCURRENT_JOBS", "0")
	if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("EMBEDDING_DIM", "not-a-number")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d, want default 768", cfg.EmbeddingDim)
	}
}
