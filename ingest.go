// Package ingest orchestrates the document ingestion pipeline:
// extract, chunk, metadata, embed, persist. The worker runtime and the
// CLI both drive the same Pipeline; only run admission differs.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prorag/ingest/chunker"
	"github.com/prorag/ingest/embed"
	"github.com/prorag/ingest/extract"
	"github.com/prorag/ingest/metadata"
	"github.com/prorag/ingest/store"
	"github.com/prorag/ingest/token"
)

// Job identifies one document to ingest under an existing run row.
type Job struct {
	RunID    uuid.UUID
	TenantID uuid.UUID

	// Path is the local file to ingest.
	Path string

	Title string

	// SourceURI is the identity of the document for dedup and
	// versioning. Defaults to the absolute Path when empty.
	SourceURI string

	// ContentHash is the SHA-256 of the raw upload if the caller
	// already computed it; the pipeline computes it otherwise.
	ContentHash string

	// Activate controls whether the new version becomes active.
	Activate bool
}

// Result reports what a run produced.
type Result struct {
	DocID     uuid.UUID
	VersionID uuid.UUID
	NumChunks int
	Skipped   bool
	Stats     store.RunStats
}

// DocumentWriter is the persistence surface the pipeline needs.
// *store.Store satisfies it.
type DocumentWriter interface {
	WriteDocument(ctx context.Context, req store.WriteRequest) (store.WriteResult, error)
	SetArtifactURI(ctx context.Context, tenantID, versionID uuid.UUID, uri string) error
}

// RunRecorder is the run-row surface the pipeline needs. *store.Store
// satisfies it.
type RunRecorder interface {
	Heartbeat(ctx context.Context, runID uuid.UUID) error
	MarkRunSucceeded(ctx context.Context, runID uuid.UUID, stats store.RunStats) error
	MarkRunFailed(ctx context.Context, runID uuid.UUID, errText string) error
}

// Pipeline runs ingestion jobs. It assumes the run row already exists
// and is in the running state; it owns heartbeats and the terminal
// transition.
type Pipeline struct {
	cfg      Config
	writer   DocumentWriter
	runs     RunRecorder
	embedder embed.Embedder

	counterOnce sync.Once
	counter     token.Counter
	counterErr  error
}

// NewPipeline wires a pipeline. The tokenizer is loaded lazily on the
// first job so process startup stays fast.
func NewPipeline(cfg Config, writer DocumentWriter, runs RunRecorder, embedder embed.Embedder) *Pipeline {
	return &Pipeline{cfg: cfg, writer: writer, runs: runs, embedder: embedder}
}

// Run executes one job end to end. Stage failures are tagged with the
// stage name, written to the run row, and returned.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	log := slog.With("run_id", job.RunID, "tenant_id", job.TenantID)

	res, err := p.run(ctx, log, job, start)
	if err != nil {
		if markErr := p.runs.MarkRunFailed(ctx, job.RunID, err.Error()); markErr != nil {
			log.Error("failed to record run failure", "error", markErr)
		}
		return nil, err
	}

	if err := p.runs.MarkRunSucceeded(ctx, job.RunID, res.Stats); err != nil {
		log.Error("failed to record run success", "error", err)
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, job Job, start time.Time) (*Result, error) {
	extractor, sourceType, err := extract.ByExtension(filepath.Ext(job.Path))
	if err != nil {
		return nil, stageErr(StageExtract, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(job.Path)))
	}

	log.Info("stage extract", "stage", StageExtract, "file", filepath.Base(job.Path))
	blocks, err := extractor(job.Path)
	if err != nil {
		return nil, stageErr(StageExtract, err)
	}
	log.Info("extracted blocks", "stage", StageExtract, "blocks", len(blocks))
	p.heartbeat(ctx, log, job.RunID)

	log.Info("stage chunk", "stage", StageChunk, "blocks", len(blocks))
	counter, err := p.loadCounter()
	if err != nil {
		return nil, stageErr(StageChunk, err)
	}
	chunked := chunker.New(chunker.Params{
		Target:  p.cfg.ChunkTargetTokens,
		Min:     p.cfg.ChunkMinTokens,
		Max:     p.cfg.ChunkMaxTokens,
		HardCap: p.cfg.ChunkHardCapTokens,
	}, counter).Chunk(blocks)
	if len(chunked.Chunks) == 0 {
		return nil, stageErr(StageChunk, ErrNoChunks)
	}
	log.Info("created chunks", "stage", StageChunk,
		"chunks", len(chunked.Chunks), "oversize", chunked.Oversize)
	p.heartbeat(ctx, log, job.RunID)

	log.Info("stage metadata", "stage", StageMetadata, "chunks", len(chunked.Chunks))
	metadata.Apply(chunked.Chunks)
	p.heartbeat(ctx, log, job.RunID)

	log.Info("stage embed", "stage", StageEmbed, "chunks", len(chunked.Chunks))
	texts := make([]string, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		texts[i] = c.Text
	}
	embeddings, err := embed.All(ctx, p.embedder, texts, p.cfg.EmbeddingBatchSize, p.cfg.EmbeddingDim)
	if err != nil {
		return nil, stageErr(StageEmbed, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}
	log.Info("generated embeddings", "stage", StageEmbed,
		"count", len(embeddings), "dim", p.cfg.EmbeddingDim)
	p.heartbeat(ctx, log, job.RunID)

	contentHash := job.ContentHash
	if contentHash == "" {
		contentHash, err = fileHash(job.Path)
		if err != nil {
			return nil, stageErr(StageDBWrite, err)
		}
	}
	sourceURI := job.SourceURI
	if sourceURI == "" {
		if abs, absErr := filepath.Abs(job.Path); absErr == nil {
			sourceURI = abs
		} else {
			sourceURI = job.Path
		}
	}

	log.Info("stage db_write", "stage", StageDBWrite, "chunks", len(chunked.Chunks))
	written, err := p.writer.WriteDocument(ctx, store.WriteRequest{
		TenantID:       job.TenantID,
		SourceType:     sourceType,
		SourceURI:      sourceURI,
		Title:          job.Title,
		ContentHash:    contentHash,
		Chunks:         chunked.Chunks,
		Embeddings:     embeddings,
		EmbeddingModel: p.embedder.Model(),
		Activate:       job.Activate,
	})
	if err != nil {
		return nil, stageErr(StageDBWrite, fmt.Errorf("%w: %v", ErrPersistFailed, err))
	}

	if !written.Skipped {
		uri, err := writeArtifact(p.cfg.ArtifactBasePath, job.TenantID, written.DocID, written.VersionLabel, blocks)
		if err != nil {
			log.Warn("failed to save artifact", "error", err)
		} else if err := p.writer.SetArtifactURI(ctx, job.TenantID, written.VersionID, uri); err != nil {
			log.Warn("failed to record artifact uri", "error", err)
		} else {
			log.Info("saved artifact", "uri", uri)
		}
	}

	totalTokens := 0
	for _, c := range chunked.Chunks {
		totalTokens += c.TokenCount
	}

	return &Result{
		DocID:     written.DocID,
		VersionID: written.VersionID,
		NumChunks: written.NumChunks,
		Skipped:   written.Skipped,
		Stats: store.RunStats{
			DocsProcessed:  1,
			ChunksCreated:  written.NumChunks,
			TokensTotal:    totalTokens,
			EmbeddingModel: p.embedder.Model(),
			DurationMS:     time.Since(start).Milliseconds(),
			Skipped:        written.Skipped,
		},
	}, nil
}

// SetCounter installs a token counter up front instead of the lazily
// loaded BPE encoder, for alternative encodings or deterministic tests.
func (p *Pipeline) SetCounter(c token.Counter) {
	p.counterOnce.Do(func() { p.counter = c })
}

func (p *Pipeline) loadCounter() (token.Counter, error) {
	p.counterOnce.Do(func() {
		p.counter, p.counterErr = token.Load(token.DefaultEncoding)
	})
	return p.counter, p.counterErr
}

// heartbeat failures are logged and swallowed; losing one heartbeat
// must not kill a healthy job.
func (p *Pipeline) heartbeat(ctx context.Context, log *slog.Logger, runID uuid.UUID) {
	if err := p.runs.Heartbeat(ctx, runID); err != nil {
		log.Warn("heartbeat failed", "error", err)
	}
}

// fileHash computes the SHA-256 of a file's raw bytes, streamed.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
