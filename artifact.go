package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/prorag/ingest/extract"
)

// writeArtifact saves the extracted block stream as indented JSON at
// {base}/{tenant}/{doc}/{label}.json and returns its file:// URI.
// Callers treat failures as non-fatal; the artifact exists for
// debugging and re-chunking, not for serving.
func writeArtifact(basePath string, tenantID, docID uuid.UUID, label string, blocks []extract.Block) (string, error) {
	dir := filepath.Join(basePath, tenantID.String(), docID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}

	data, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling artifact: %w", err)
	}

	path := filepath.Join(dir, label+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}

	return "file://" + path, nil
}
