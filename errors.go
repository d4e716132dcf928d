package ingest

import "errors"

var (
	// ErrUnsupportedFormat is returned for unrecognized file extensions.
	ErrUnsupportedFormat = errors.New("ingest: unsupported document format")

	// ErrNoChunks is returned when chunking produces nothing to persist.
	ErrNoChunks = errors.New("ingest: no chunks produced")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("ingest: embedding generation failed")

	// ErrPersistFailed is returned when the database write fails.
	ErrPersistFailed = errors.New("ingest: persist failed")

	// ErrRunNotFound is returned when a run id does not exist.
	ErrRunNotFound = errors.New("ingest: run not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("ingest: invalid configuration")
)

// Pipeline stages, recorded as a prefix on run errors so operators can see
// where a job died without reading the full message.
const (
	StageExtract  = "extract"
	StageChunk    = "chunk"
	StageMetadata = "metadata"
	StageEmbed    = "embed"
	StageDBWrite  = "db_write"
)

// StageError tags a pipeline failure with the stage that produced it.
// The formatted message ("[stage] cause") is what lands in the run row.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return "[" + e.Stage + "] " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
