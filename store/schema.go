package store

import "fmt"

// schemaSQL returns the DDL for the content and run tables. Every
// content table carries tenant_id so cross-tenant reads are impossible
// without an explicit predicate. The partial unique index on
// document_versions enforces at most one active version per document.
func schemaSQL(dim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	doc_id       UUID PRIMARY KEY,
	tenant_id    UUID NOT NULL,
	source_type  TEXT NOT NULL,
	source_uri   TEXT NOT NULL,
	title        TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, source_uri)
);

CREATE TABLE IF NOT EXISTS document_versions (
	doc_version_id         UUID PRIMARY KEY,
	tenant_id              UUID NOT NULL,
	doc_id                 UUID NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	version_label          TEXT NOT NULL,
	is_active              BOOLEAN NOT NULL DEFAULT false,
	content_hash           TEXT,
	extracted_artifact_uri TEXT,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS document_versions_one_active
	ON document_versions (tenant_id, doc_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id       UUID PRIMARY KEY,
	tenant_id      UUID NOT NULL,
	doc_version_id UUID NOT NULL REFERENCES document_versions(doc_version_id) ON DELETE CASCADE,
	ordinal        INTEGER NOT NULL,
	heading_path   JSONB NOT NULL DEFAULT '[]',
	chunk_type     TEXT NOT NULL,
	text           TEXT NOT NULL,
	token_count    INTEGER NOT NULL,
	metadata       JSONB NOT NULL DEFAULT '{}',
	UNIQUE (doc_version_id, ordinal)
);

CREATE INDEX IF NOT EXISTS chunks_tenant_version
	ON chunks (tenant_id, doc_version_id);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id        UUID PRIMARY KEY REFERENCES chunks(chunk_id) ON DELETE CASCADE,
	tenant_id       UUID NOT NULL,
	embedding_model TEXT NOT NULL,
	embedding       vector(%d) NOT NULL
);

CREATE TABLE IF NOT EXISTS chunk_fts (
	chunk_id  UUID PRIMARY KEY REFERENCES chunks(chunk_id) ON DELETE CASCADE,
	tenant_id UUID NOT NULL,
	tsv       TSVECTOR NOT NULL
);

CREATE INDEX IF NOT EXISTS chunk_fts_tsv ON chunk_fts USING GIN (tsv);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	run_id      UUID PRIMARY KEY,
	tenant_id   UUID NOT NULL,
	status      TEXT NOT NULL DEFAULT 'queued',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at  TIMESTAMPTZ,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	config      JSONB NOT NULL DEFAULT '{}',
	stats       JSONB,
	error       TEXT
);

CREATE INDEX IF NOT EXISTS ingestion_runs_status
	ON ingestion_runs (status, updated_at);
`, dim)
}
