package ingest

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/prorag/ingest/extract"
)

func TestWriteArtifact(t *testing.T) {
	base := t.TempDir()
	tenantID := uuid.New()
	docID := uuid.New()
	blocks := []extract.Block{
		extract.Heading("Title", 1),
		extract.Paragraph("Body text."),
	}

	uri, err := writeArtifact(base, tenantID, docID, "v20260101000000", blocks)
	if err != nil {
		t.Fatalf("writeArtifact: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Errorf("uri = %q, want file:// prefix", uri)
	}

	path := strings.TrimPrefix(uri, "file://")
	if !strings.Contains(path, tenantID.String()) || !strings.Contains(path, docID.String()) {
		t.Errorf("path = %q, want tenant and doc segments", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	var decoded []extract.Block
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decoding artifact: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Kind != "heading" || decoded[0].Text != "Title" {
		t.Errorf("decoded = %+v", decoded)
	}
}
