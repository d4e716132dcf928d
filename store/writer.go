package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/prorag/ingest/chunker"
)

// WriteRequest carries everything needed to persist one document
// version. Chunks and Embeddings are parallel slices.
type WriteRequest struct {
	TenantID    uuid.UUID
	SourceType  string
	SourceURI   string
	Title       string
	ContentHash string

	Chunks         []chunker.Chunk
	Embeddings     [][]float32
	EmbeddingModel string

	// Activate makes the new version the active one, deactivating the
	// previous active version in the same transaction.
	Activate bool

	// VersionLabel defaults to v{UTC timestamp} when empty.
	VersionLabel string
}

// WriteResult reports what WriteDocument did. Skipped means the same
// content was already active for this source and nothing was written.
type WriteResult struct {
	DocID        uuid.UUID
	VersionID    uuid.UUID
	VersionLabel string
	NumChunks    int
	Skipped      bool
}

// WriteDocument persists a document version in a single transaction:
// dedup check, document upsert, deactivate-then-insert version, then
// chunk, embedding, and full-text rows in ordinal order. Every row is
// tenant-scoped; the tsvector is computed server-side so the analyzer
// matches the one used at query time.
func (s *Store) WriteDocument(ctx context.Context, req WriteRequest) (WriteResult, error) {
	if len(req.Chunks) != len(req.Embeddings) {
		return WriteResult{}, fmt.Errorf("chunks (%d) and embeddings (%d) must have same length",
			len(req.Chunks), len(req.Embeddings))
	}

	label := req.VersionLabel
	if label == "" {
		label = "v" + time.Now().UTC().Format("20060102150405")
	}

	var res WriteResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var (
			docID     uuid.UUID
			prevHash  string
			hasActive bool
			exists    bool
		)
		// Lock the document row so concurrent writers of the same
		// source serialize on the dedup check.
		err := tx.QueryRow(ctx, `
			SELECT d.doc_id, d.content_hash,
			       EXISTS(
			           SELECT 1 FROM document_versions dv
			           WHERE dv.doc_id = d.doc_id
			             AND dv.tenant_id = d.tenant_id
			             AND dv.is_active
			       )
			FROM documents d
			WHERE d.tenant_id = $1 AND d.source_uri = $2
			FOR UPDATE OF d`,
			req.TenantID, req.SourceURI,
		).Scan(&docID, &prevHash, &hasActive)
		switch err {
		case nil:
			exists = true
		case pgx.ErrNoRows:
			exists = false
		default:
			return fmt.Errorf("checking existing document: %w", err)
		}

		if exists && prevHash == req.ContentHash && hasActive {
			slog.Info("document already ingested with same content hash, skipping",
				"tenant_id", req.TenantID,
				"doc_id", docID,
				"source_uri", req.SourceURI)
			res = WriteResult{DocID: docID, Skipped: true}
			return nil
		}

		if exists {
			if _, err := tx.Exec(ctx, `
				UPDATE documents
				SET content_hash = $1, title = $2, updated_at = now()
				WHERE doc_id = $3 AND tenant_id = $4`,
				req.ContentHash, req.Title, docID, req.TenantID,
			); err != nil {
				return fmt.Errorf("updating document: %w", err)
			}
		} else {
			docID = uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO documents (doc_id, tenant_id, source_type, source_uri, title, content_hash)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				docID, req.TenantID, req.SourceType, req.SourceURI, req.Title, req.ContentHash,
			); err != nil {
				return fmt.Errorf("inserting document: %w", err)
			}
		}

		if req.Activate {
			if _, err := tx.Exec(ctx, `
				UPDATE document_versions
				SET is_active = false
				WHERE doc_id = $1 AND tenant_id = $2 AND is_active`,
				docID, req.TenantID,
			); err != nil {
				return fmt.Errorf("deactivating previous version: %w", err)
			}
		}

		versionID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO document_versions
				(doc_version_id, tenant_id, doc_id, version_label, is_active, content_hash)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			versionID, req.TenantID, docID, label, req.Activate, req.ContentHash,
		); err != nil {
			return fmt.Errorf("inserting version: %w", err)
		}

		for i, chunk := range req.Chunks {
			chunkID := uuid.New()

			headingPath, err := json.Marshal(chunk.HeadingPath)
			if err != nil {
				return fmt.Errorf("marshaling heading path: %w", err)
			}
			meta := chunk.Meta
			if meta == nil {
				meta = map[string]any{}
			}
			metaJSON, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("marshaling chunk metadata: %w", err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO chunks
					(chunk_id, tenant_id, doc_version_id, ordinal, heading_path,
					 chunk_type, text, token_count, metadata)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				chunkID, req.TenantID, versionID, chunk.Ordinal, headingPath,
				chunk.Kind, chunk.Text, chunk.TokenCount, metaJSON,
			); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", chunk.Ordinal, err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO chunk_embeddings (chunk_id, tenant_id, embedding_model, embedding)
				VALUES ($1, $2, $3, $4)`,
				chunkID, req.TenantID, req.EmbeddingModel, pgvector.NewVector(req.Embeddings[i]),
			); err != nil {
				return fmt.Errorf("inserting embedding %d: %w", chunk.Ordinal, err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO chunk_fts (chunk_id, tenant_id, tsv)
				VALUES ($1, $2, to_tsvector('english', $3))`,
				chunkID, req.TenantID, chunk.Text,
			); err != nil {
				return fmt.Errorf("inserting fts row %d: %w", chunk.Ordinal, err)
			}
		}

		res = WriteResult{
			DocID:        docID,
			VersionID:    versionID,
			VersionLabel: label,
			NumChunks:    len(req.Chunks),
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}

	if !res.Skipped {
		slog.Info("wrote document",
			"tenant_id", req.TenantID,
			"doc_id", res.DocID,
			"version", res.VersionLabel,
			"chunks", res.NumChunks,
			"activate", req.Activate)
	}
	return res, nil
}

// SetArtifactURI records the extracted-artifact location on a version
// row, after the artifact file is written.
func (s *Store) SetArtifactURI(ctx context.Context, tenantID, versionID uuid.UUID, uri string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE document_versions
		SET extracted_artifact_uri = $1
		WHERE doc_version_id = $2 AND tenant_id = $3`,
		uri, versionID, tenantID)
	if err != nil {
		return fmt.Errorf("setting artifact uri: %w", err)
	}
	return nil
}

// ActivateVersion switches the active version of a document to the
// given one, deactivating the current active version in the same
// transaction.
func (s *Store) ActivateVersion(ctx context.Context, tenantID, versionID uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var docID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT doc_id FROM document_versions
			WHERE doc_version_id = $1 AND tenant_id = $2`,
			versionID, tenantID,
		).Scan(&docID)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("version %s not found for tenant", versionID)
		}
		if err != nil {
			return fmt.Errorf("looking up version: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE document_versions
			SET is_active = false
			WHERE doc_id = $1 AND tenant_id = $2 AND is_active`,
			docID, tenantID,
		); err != nil {
			return fmt.Errorf("deactivating previous version: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE document_versions
			SET is_active = true
			WHERE doc_version_id = $1 AND tenant_id = $2`,
			versionID, tenantID,
		); err != nil {
			return fmt.Errorf("activating version: %w", err)
		}
		return nil
	})
}
