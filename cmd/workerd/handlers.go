package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prorag/ingest/worker"
)

type handler struct {
	worker *worker.Worker
}

func newHandler(w *worker.Worker) *handler {
	return &handler{worker: w}
}

// POST /internal/process
func (h *handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var job worker.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if job.RunID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	err := h.worker.Submit(job)
	switch {
	case err == nil, errors.Is(err, worker.ErrDuplicateRun):
		// A duplicate means the run is already in flight here, which
		// is exactly what accepting it would produce.
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"run_id": job.RunID,
		})
	case errors.Is(err, worker.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, "worker busy")
	case errors.Is(err, worker.ErrInvalidJob):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to accept job")
	}
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"active_jobs":    h.worker.ActiveJobs(),
		"max_concurrent": h.worker.MaxConcurrent(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
