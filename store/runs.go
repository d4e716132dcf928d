package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ErrInterrupted is the error text written to runs failed by the
// startup sweep.
const ErrInterrupted = "interrupted — service restarted"

// RunStats is the stats object stored on a succeeded run.
type RunStats struct {
	DocsProcessed  int    `json:"docs_processed"`
	ChunksCreated  int    `json:"chunks_created"`
	TokensTotal    int    `json:"tokens_total"`
	EmbeddingModel string `json:"embedding_model"`
	DurationMS     int64  `json:"duration_ms"`
	Skipped        bool   `json:"skipped"`
}

// CreateRun inserts a run row already in the running state, for the
// direct (CLI) path where the caller processes the run itself.
func (s *Store) CreateRun(ctx context.Context, tenantID uuid.UUID, config map[string]any) (uuid.UUID, error) {
	return s.insertRun(ctx, tenantID, RunRunning, config)
}

// EnqueueRun inserts a run row in the queued state, waiting for a
// worker to claim it.
func (s *Store) EnqueueRun(ctx context.Context, tenantID uuid.UUID, config map[string]any) (uuid.UUID, error) {
	return s.insertRun(ctx, tenantID, RunQueued, config)
}

func (s *Store) insertRun(ctx context.Context, tenantID uuid.UUID, status string, config map[string]any) (uuid.UUID, error) {
	if config == nil {
		config = map[string]any{}
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling run config: %w", err)
	}

	runID := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingestion_runs (run_id, tenant_id, status, started_at, config)
		VALUES ($1, $2, $3, CASE WHEN $3 = 'running' THEN now() END, $4)`,
		runID, tenantID, status, configJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating run: %w", err)
	}

	slog.Info("created ingestion run", "run_id", runID, "tenant_id", tenantID, "status", status)
	return runID, nil
}

// ClaimRun attempts to transition a run to running on behalf of a
// worker. Queued and failed runs are claimable directly. When the
// conditional update hits zero rows, the current status decides:
// succeeded and fresh running runs are skipped, a running run without
// a heartbeat for longer than staleAfter is force-reclaimed, and a
// missing run is logged and skipped.
func (s *Store) ClaimRun(ctx context.Context, runID uuid.UUID, staleAfter time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = 'running',
		    started_at = COALESCE(started_at, now()),
		    updated_at = now()
		WHERE run_id = $1 AND status IN ('queued', 'failed')`,
		runID)
	if err != nil {
		return false, fmt.Errorf("claiming run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var (
		status    string
		updatedAt time.Time
	)
	err = s.pool.QueryRow(ctx,
		`SELECT status, updated_at FROM ingestion_runs WHERE run_id = $1`,
		runID,
	).Scan(&status, &updatedAt)
	if err != nil {
		slog.Error("run not found", "run_id", runID, "error", err)
		return false, nil
	}

	switch status {
	case RunSucceeded:
		slog.Info("run already succeeded, skipping", "run_id", runID)
		return false, nil
	case RunRunning:
		if time.Since(updatedAt) > staleAfter {
			slog.Warn("stale running run detected, reclaiming", "run_id", runID,
				"last_heartbeat", updatedAt)
			tag, err := s.pool.Exec(ctx, `
				UPDATE ingestion_runs
				SET updated_at = now()
				WHERE run_id = $1 AND status = 'running'`,
				runID)
			if err != nil {
				return false, fmt.Errorf("reclaiming stale run: %w", err)
			}
			return tag.RowsAffected() > 0, nil
		}
		slog.Info("run is actively being processed, skipping", "run_id", runID)
		return false, nil
	}

	return false, nil
}

// Heartbeat bumps updated_at so other workers see the run as live.
func (s *Store) Heartbeat(ctx context.Context, runID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingestion_runs SET updated_at = now() WHERE run_id = $1`,
		runID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// MarkRunSucceeded records the terminal success state with stats.
func (s *Store) MarkRunSucceeded(ctx context.Context, runID uuid.UUID, stats RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling run stats: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = 'succeeded', finished_at = now(), updated_at = now(), stats = $1
		WHERE run_id = $2`,
		statsJSON, runID)
	if err != nil {
		return fmt.Errorf("marking run succeeded: %w", err)
	}
	slog.Info("ingestion run succeeded", "run_id", runID,
		"chunks_created", stats.ChunksCreated,
		"tokens_total", stats.TokensTotal,
		"duration_ms", stats.DurationMS,
		"skipped", stats.Skipped)
	return nil
}

// MarkRunFailed records the terminal failure state with the error text
// (stage-prefixed by the pipeline).
func (s *Store) MarkRunFailed(ctx context.Context, runID uuid.UUID, errText string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = 'failed', finished_at = now(), updated_at = now(), error = $1
		WHERE run_id = $2`,
		errText, runID)
	if err != nil {
		return fmt.Errorf("marking run failed: %w", err)
	}
	slog.Info("ingestion run failed", "run_id", runID, "error", errText)
	return nil
}

// SweepInterrupted fails running runs whose last heartbeat is older
// than olderThan. Called once at worker startup so runs orphaned by a
// crash or restart do not stay running forever.
func (s *Store) SweepInterrupted(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = 'failed', finished_at = now(), updated_at = now(), error = $1
		WHERE status = 'running' AND updated_at < now() - make_interval(secs => $2)`,
		ErrInterrupted, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("sweeping interrupted runs: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Warn("swept interrupted runs", "count", n)
		return n, nil
	}
	return 0, nil
}

// SweepExpiredQueued fails queued runs older than ttl that no worker
// ever claimed. A ttl of 0 disables the sweep.
func (s *Store) SweepExpiredQueued(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = 'failed', finished_at = now(), updated_at = now(),
		    error = 'queued run expired before being claimed'
		WHERE status = 'queued' AND created_at < now() - make_interval(secs => $1)`,
		ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired queued runs: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Warn("swept expired queued runs", "count", n)
		return n, nil
	}
	return 0, nil
}
