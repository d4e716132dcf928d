// prorag is a thin CLI over the ingestion engine for local and
// operational use: ingest a file directly, or switch the active
// version of a document.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/prorag/ingest"
	"github.com/prorag/ingest/embed"
	"github.com/prorag/ingest/store"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	root := &cobra.Command{
		Use:           "prorag",
		Short:         "Document ingestion for the pro-rag engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ingestCmd(), activateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg ingest.Config) (*store.Store, error) {
	st, err := store.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func ingestCmd() *cobra.Command {
	var (
		tenant   string
		title    string
		activate bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a single document end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			path := args[0]
			if title == "" {
				title = filepath.Base(path)
			}

			cfg, err := ingest.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			st, err := openStore(ctx, cfg)
			cancel()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx = cmd.Context()
			runID, err := st.CreateRun(ctx, tenantID, map[string]any{
				"file_path":             path,
				"title":                 title,
				"activate":              activate,
				"embedding_model":       cfg.EmbeddingModel,
				"chunk_target_tokens":   cfg.ChunkTargetTokens,
				"chunk_max_tokens":      cfg.ChunkMaxTokens,
				"chunk_hard_cap_tokens": cfg.ChunkHardCapTokens,
			})
			if err != nil {
				return err
			}

			embedder := embed.NewHTTP(cfg.EmbedEndpoint, cfg.EmbeddingModel)
			pipeline := ingest.NewPipeline(cfg, st, st, embedder)

			res, err := pipeline.Run(ctx, ingest.Job{
				RunID:    runID,
				TenantID: tenantID,
				Path:     path,
				Title:    title,
				Activate: activate,
			})
			if err != nil {
				return err
			}

			if res.Skipped {
				fmt.Printf("skipped: identical content already active (doc_id=%s, run_id=%s)\n", res.DocID, runID)
				return nil
			}
			fmt.Printf("ingested: doc_id=%s version_id=%s chunks=%d run_id=%s\n",
				res.DocID, res.VersionID, res.NumChunks, runID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant UUID (required)")
	cmd.Flags().StringVar(&title, "title", "", "document title (defaults to the file name)")
	cmd.Flags().BoolVar(&activate, "activate", true, "activate the new version immediately")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func activateCmd() *cobra.Command {
	var (
		tenant  string
		version string
	)

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Make a document version the active one",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			versionID, err := uuid.Parse(version)
			if err != nil {
				return fmt.Errorf("invalid --doc-version-id: %w", err)
			}

			cfg, err := ingest.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ActivateVersion(ctx, tenantID, versionID); err != nil {
				return err
			}
			fmt.Printf("activated: doc_version_id=%s\n", versionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant UUID (required)")
	cmd.Flags().StringVar(&version, "doc-version-id", "", "version UUID to activate (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("doc-version-id")

	return cmd
}
