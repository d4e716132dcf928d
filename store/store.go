// Package store persists documents, versions, chunks, embeddings, and
// full-text rows to Postgres, and owns the ingestion-run state machine.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConnectRetries = 10
	retryBaseWait     = 1 * time.Second
	retryMaxWait      = 10 * time.Second
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// New connects to Postgres with bounded exponential-backoff retries and
// verifies the connection with a ping. dim is the embedding dimension
// used when creating the chunk_embeddings table.
func New(ctx context.Context, databaseURL string, dim int) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	wait := retryBaseWait

	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				slog.Info("database connected", "attempt", attempt)
				return &Store{pool: pool, dim: dim}, nil
			} else {
				err = pingErr
				pool.Close()
			}
		}

		if attempt == maxConnectRetries {
			return nil, fmt.Errorf("database connection failed after %d attempts: %w", maxConnectRetries, err)
		}

		slog.Warn("database connection failed, retrying",
			"attempt", attempt,
			"max_retries", maxConnectRetries,
			"wait", wait.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > retryMaxWait {
			wait = retryMaxWait
		}
	}

	return nil, err
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for callers that need raw queries
// (integration tests, mostly).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// EmbeddingDim returns the configured vector dimension.
func (s *Store) EmbeddingDim() int { return s.dim }

// EnsureSchema creates the required extensions, tables, and indexes if
// they do not exist. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL(s.dim)); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
