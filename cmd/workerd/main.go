// workerd is the internal ingestion worker: it accepts job payloads on
// POST /internal/process and runs the pipeline for each with bounded
// concurrency. Not publicly exposed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prorag/ingest"
	"github.com/prorag/ingest/embed"
	"github.com/prorag/ingest/store"
	"github.com/prorag/ingest/worker"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := ingest.FromEnv()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	st, err := store.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
	cancel()
	if err != nil {
		slog.Error("connecting to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensuring schema", "error", err)
		os.Exit(1)
	}

	// Crash recovery: fail runs orphaned by a previous worker process,
	// and expire queued runs nothing ever claimed.
	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := st.SweepInterrupted(sweepCtx, time.Duration(cfg.StartupSweepMinutes)*time.Minute); err != nil {
		slog.Error("startup sweep failed", "error", err)
	}
	if _, err := st.SweepExpiredQueued(sweepCtx, time.Duration(cfg.QueuedTTLHours)*time.Hour); err != nil {
		slog.Error("queued sweep failed", "error", err)
	}
	sweepCancel()

	embedder := embed.NewHTTP(cfg.EmbedEndpoint, cfg.EmbeddingModel)
	pipeline := ingest.NewPipeline(cfg, st, st, embedder)
	w := worker.New(pipeline, st, cfg.MaxConcurrentJobs, time.Duration(cfg.StaleRunningMinutes)*time.Minute)

	h := newHandler(w)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/process", h.handleProcess)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(cfg.InternalAuthToken, handler)
	handler = recoveryMiddleware(handler)

	addr := fmt.Sprintf(":%d", cfg.WorkerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("worker starting", "addr", addr, "max_concurrent", cfg.MaxConcurrentJobs)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("worker stopped")
}
