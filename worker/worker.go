// Package worker is the job runtime behind the internal process
// endpoint: bounded admission, run claiming, pipeline execution, and
// upload cleanup.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/prorag/ingest"
)

var (
	// ErrBusy is returned when every concurrency slot is occupied.
	ErrBusy = errors.New("worker: busy")

	// ErrDuplicateRun is returned when the run is already being
	// processed by this worker. Callers treat it as already accepted.
	ErrDuplicateRun = errors.New("worker: run already active")

	// ErrInvalidJob is returned for malformed job payloads.
	ErrInvalidJob = errors.New("worker: invalid job")
)

// Job is the wire payload accepted from the dispatcher.
type Job struct {
	RunID       string `json:"run_id"`
	DocID       string `json:"doc_id"`
	TenantID    string `json:"tenant_id"`
	UploadURI   string `json:"upload_uri"`
	Title       string `json:"title"`
	SourceType  string `json:"source_type"`
	SourceURI   string `json:"source_uri"`
	ContentHash string `json:"content_hash"`
}

// Runner executes one ingestion job. *ingest.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job ingest.Job) (*ingest.Result, error)
}

// RunStore is the run-row surface the worker needs for claiming and
// for failures that happen before the pipeline starts.
type RunStore interface {
	ClaimRun(ctx context.Context, runID uuid.UUID, staleAfter time.Duration) (bool, error)
	MarkRunFailed(ctx context.Context, runID uuid.UUID, errText string) error
}

// Worker admits jobs into a bounded pool and processes each in its own
// goroutine.
type Worker struct {
	runner     Runner
	runs       RunStore
	slots      *semaphore.Weighted
	max        int
	staleAfter time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// New returns a worker with maxConcurrent slots. staleAfter bounds how
// long a running run may miss heartbeats before it can be reclaimed.
func New(runner Runner, runs RunStore, maxConcurrent int, staleAfter time.Duration) *Worker {
	return &Worker{
		runner:     runner,
		runs:       runs,
		slots:      semaphore.NewWeighted(int64(maxConcurrent)),
		max:        maxConcurrent,
		staleAfter: staleAfter,
		active:     make(map[uuid.UUID]struct{}),
	}
}

// ActiveJobs returns how many jobs are currently processing.
func (w *Worker) ActiveJobs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

// MaxConcurrent returns the slot count.
func (w *Worker) MaxConcurrent() int { return w.max }

// Submit validates the payload and starts processing in the
// background. It returns ErrDuplicateRun when this worker already
// holds the run and ErrBusy when all slots are occupied.
func (w *Worker) Submit(job Job) error {
	runID, err := uuid.Parse(job.RunID)
	if err != nil {
		return fmt.Errorf("%w: bad run_id %q", ErrInvalidJob, job.RunID)
	}
	tenantID, err := uuid.Parse(job.TenantID)
	if err != nil {
		return fmt.Errorf("%w: bad tenant_id %q", ErrInvalidJob, job.TenantID)
	}
	if job.UploadURI == "" {
		return fmt.Errorf("%w: upload_uri is required", ErrInvalidJob)
	}

	w.mu.Lock()
	if _, ok := w.active[runID]; ok {
		w.mu.Unlock()
		return ErrDuplicateRun
	}
	if !w.slots.TryAcquire(1) {
		w.mu.Unlock()
		slog.Warn("worker busy, rejecting job", "run_id", runID, "max_concurrent", w.max)
		return ErrBusy
	}
	w.active[runID] = struct{}{}
	activeNow := len(w.active)
	w.mu.Unlock()

	slog.Info("job accepted", "run_id", runID, "active", activeNow, "max_concurrent", w.max)

	go w.process(runID, tenantID, job)
	return nil
}

func (w *Worker) process(runID, tenantID uuid.UUID, job Job) {
	// Jobs are not cancellable in V1; the run state machine handles
	// abandoned work.
	ctx := context.Background()
	start := time.Now()

	defer func() {
		w.mu.Lock()
		delete(w.active, runID)
		w.mu.Unlock()
		w.slots.Release(1)
	}()

	log := slog.With("run_id", runID, "tenant_id", tenantID)

	claimed, err := w.runs.ClaimRun(ctx, runID, w.staleAfter)
	if err != nil {
		log.Error("claim failed", "error", err)
		return
	}
	if !claimed {
		log.Info("skipping job, run not claimable")
		return
	}

	path := ResolveUploadURI(job.UploadURI)
	if _, err := os.Stat(path); err != nil {
		failErr := fmt.Errorf("upload file not found: %s", path)
		log.Error("job failed before pipeline", "error", failErr)
		if markErr := w.runs.MarkRunFailed(ctx, runID, failErr.Error()); markErr != nil {
			log.Error("failed to record run failure", "error", markErr)
		}
		w.logComplete(log, runID, tenantID, job.DocID, "failed", nil, failErr, start)
		return
	}

	log.Info("processing job", "doc_id", job.DocID, "file", path)

	result, err := w.runner.Run(ctx, ingest.Job{
		RunID:       runID,
		TenantID:    tenantID,
		Path:        path,
		Title:       job.Title,
		SourceURI:   job.SourceURI,
		ContentHash: job.ContentHash,
		Activate:    true,
	})
	if err != nil {
		// The pipeline already recorded the failure on the run row.
		w.logComplete(log, runID, tenantID, job.DocID, "failed", nil, err, start)
		return
	}

	w.cleanupUpload(log, path)
	w.logComplete(log, runID, tenantID, job.DocID, "succeeded", result, nil, start)
}

// cleanupUpload removes the raw upload after a successful run, plus its
// parent directory when that leaves it empty. Failed runs keep the
// upload so they can be requeued.
func (w *Worker) cleanupUpload(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove upload", "path", path, "error", err)
		return
	}
	// Best effort: fails when the directory still has entries.
	_ = os.Remove(filepath.Dir(path))
}

func (w *Worker) logComplete(log *slog.Logger, runID, tenantID uuid.UUID, docID, status string, result *ingest.Result, err error, start time.Time) {
	attrs := []any{
		"event", "ingest_job_complete",
		"run_id", runID,
		"tenant_id", tenantID,
		"doc_id", docID,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result != nil {
		attrs = append(attrs,
			"chunks_created", result.NumChunks,
			"tokens_total", result.Stats.TokensTotal,
			"skipped", result.Skipped)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	log.Info("ingest job complete", attrs...)
}

// ResolveUploadURI maps a file:// URI (or a bare path) to a local
// filesystem path.
func ResolveUploadURI(uploadURI string) string {
	return strings.TrimPrefix(uploadURI, "file://")
}
