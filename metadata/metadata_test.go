package metadata

import (
	"strings"
	"testing"

	"github.com/prorag/ingest/chunker"
)

func TestKeywordsFrequencyOrder(t *testing.T) {
	got := Keywords("the quick brown fox jumped while the fox slept", MaxKeywords)
	want := []string{"fox", "quick", "brown", "jumped", "slept"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestKeywordsTieBreakFirstSeen(t *testing.T) {
	got := Keywords("alpha beta alpha beta gamma", 3)
	want := []string{"alpha", "beta", "gamma"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestKeywordsDropsShortAndStopWords(t *testing.T) {
	got := Keywords("it is to be or not to be ax ox", MaxKeywords)
	if len(got) != 0 {
		t.Errorf("keywords = %v, want empty", got)
	}
	if got == nil {
		t.Error("keywords = nil, want empty slice")
	}
}

func TestKeywordsLowercasesAndCaps(t *testing.T) {
	text := strings.Repeat("Alpha ALPHA alpha ", 2) +
		"bravo charlie delta echo foxtrot golf hotel india juliet"
	got := Keywords(text, MaxKeywords)
	if len(got) != MaxKeywords {
		t.Fatalf("len(keywords) = %d, want %d", len(got), MaxKeywords)
	}
	if got[0] != "alpha" {
		t.Errorf("keywords[0] = %q, want %q", got[0], "alpha")
	}
}

func TestKeywordsSplitsNonAlpha(t *testing.T) {
	got := Keywords("load-bearing wall", MaxKeywords)
	want := []string{"load", "bearing", "wall"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestForChunkShape(t *testing.T) {
	m := ForChunk("database indexing performance", "text", nil)

	if m["summary"] != "" {
		t.Errorf("summary = %v, want empty string", m["summary"])
	}
	if qs, ok := m["hypothetical_questions"].([]string); !ok || len(qs) != 0 {
		t.Errorf("hypothetical_questions = %v, want empty list", m["hypothetical_questions"])
	}
	if kws, ok := m["keywords"].([]string); !ok || len(kws) == 0 {
		t.Errorf("keywords = %v, want non-empty", m["keywords"])
	}
	if _, ok := m["table"]; ok {
		t.Error("text chunk metadata has table key")
	}
}

func TestForChunkTableFormat(t *testing.T) {
	extra := map[string]any{"format": "markdown", "num_rows": 3, "num_cols": 2}
	m := ForChunk("| a | b |", "table", extra)

	table, ok := m["table"].(map[string]any)
	if !ok {
		t.Fatalf("table = %v, want map", m["table"])
	}
	if table["format"] != "markdown" {
		t.Errorf("table format = %v, want markdown", table["format"])
	}
	if _, ok := table["num_rows"]; ok {
		t.Error("row counts should not survive into stored metadata")
	}
}

func TestApplyReplacesMeta(t *testing.T) {
	chunks := []chunker.Chunk{
		{Text: "plain paragraph content", Kind: "text", Meta: nil},
		{Text: "| a | b |", Kind: "table", Meta: map[string]any{"format": "markdown"}},
	}

	Apply(chunks)

	for i, chunk := range chunks {
		if _, ok := chunk.Meta["keywords"]; !ok {
			t.Errorf("chunk %d metadata missing keywords", i)
		}
	}
	if _, ok := chunks[0].Meta["table"]; ok {
		t.Error("text chunk gained table metadata")
	}
	if _, ok := chunks[1].Meta["table"]; !ok {
		t.Error("table chunk lost table metadata")
	}
}
