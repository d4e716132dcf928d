// Package chunker splits an extracted block stream into chunks sized
// for embedding. Prose accumulates toward a target token budget with
// headings forcing boundaries; tables are packed row groups that
// replicate the header, never split mid-row.
package chunker

import (
	"log/slog"
	"strings"

	"github.com/prorag/ingest/extract"
	"github.com/prorag/ingest/token"
)

// Default token budgets.
const (
	DefaultTargetTokens  = 450
	DefaultMinTokens     = 350
	DefaultMaxTokens     = 500
	DefaultHardCapTokens = 800
)

// Params are the chunking token budgets.
type Params struct {
	Target  int
	Min     int
	Max     int
	HardCap int
}

// DefaultParams returns the standard 450/350/500/800 budgets.
func DefaultParams() Params {
	return Params{
		Target:  DefaultTargetTokens,
		Min:     DefaultMinTokens,
		Max:     DefaultMaxTokens,
		HardCap: DefaultHardCapTokens,
	}
}

// Chunk is one unit of text ready for embedding and storage.
type Chunk struct {
	Text        string
	Kind        string // "text" or "table"
	TokenCount  int
	HeadingPath []string
	Ordinal     int
	Meta        map[string]any
}

// Result is the chunker output. Oversize counts chunks that exceeded
// the hard cap and were kept anyway (single oversized sentences or
// table rows).
type Result struct {
	Chunks   []Chunk
	Oversize int
}

// Chunker splits block streams under a fixed set of budgets.
type Chunker struct {
	params  Params
	counter token.Counter
}

// New returns a Chunker using the given budgets and token counter.
func New(params Params, counter token.Counter) *Chunker {
	return &Chunker{params: params, counter: counter}
}

// Chunk walks the blocks once, maintaining the heading path across the
// whole document, and emits chunks with dense 0-based ordinals.
func (c *Chunker) Chunk(blocks []extract.Block) Result {
	var res Result
	var path []string

	var parts []string
	partTokens := 0

	flush := func() {
		if len(parts) == 0 {
			return
		}
		text := strings.Join(parts, "\n\n")
		res.Chunks = append(res.Chunks, Chunk{
			Text:        text,
			Kind:        "text",
			TokenCount:  c.counter.Count(text),
			HeadingPath: clonePath(path),
		})
		parts = nil
		partTokens = 0
	}

	for _, block := range blocks {
		switch block.Kind {
		case extract.KindHeading:
			// A heading closes the current chunk, then adjusts the path:
			// truncate to the parent level and append. The heading text
			// itself opens the next chunk.
			flush()
			level := block.Level()
			if level-1 < len(path) {
				path = path[:level-1]
			}
			path = append(path, block.Text)
			parts = append(parts, block.Text)
			partTokens += c.counter.Count(block.Text)

		case extract.KindTable:
			flush()
			c.chunkTable(block, path, &res)

		default:
			blockTokens := c.counter.Count(block.Text)

			if partTokens+blockTokens > c.params.Max && len(parts) > 0 {
				flush()
			}

			if blockTokens > c.params.Max {
				flush()
				c.chunkSentences(block.Text, path, &res)
				continue
			}

			parts = append(parts, block.Text)
			partTokens += blockTokens

			if partTokens >= c.params.Target {
				flush()
			}
		}
	}
	flush()

	for i := range res.Chunks {
		res.Chunks[i].Ordinal = i
	}

	return res
}

// chunkSentences splits an oversized block at sentence boundaries and
// repacks greedily up to Max. A single sentence above the hard cap is
// kept whole as its own chunk and counted as oversize.
func (c *Chunker) chunkSentences(text string, path []string, res *Result) {
	var parts []string
	partTokens := 0

	emit := func() {
		if len(parts) == 0 {
			return
		}
		joined := strings.Join(parts, " ")
		tc := c.counter.Count(joined)
		if tc > c.params.HardCap {
			res.Oversize++
		}
		res.Chunks = append(res.Chunks, Chunk{
			Text:        joined,
			Kind:        "text",
			TokenCount:  tc,
			HeadingPath: clonePath(path),
		})
		parts = nil
		partTokens = 0
	}

	for _, sent := range splitSentences(text) {
		st := c.counter.Count(sent)
		if partTokens+st > c.params.Max && len(parts) > 0 {
			emit()
		}
		if st > c.params.HardCap {
			slog.Warn("sentence exceeds hard cap, keeping whole",
				"tokens", st,
				"hard_cap", c.params.HardCap,
				"prefix", prefix(sent, 80))
		}
		parts = append(parts, sent)
		partTokens += st
	}
	emit()
}

// chunkTable emits one or more table chunks. A table within the hard
// cap stays whole; larger tables are packed as row groups with the
// header and separator lines replicated on every chunk. A row that
// cannot fit under the cap even alone is kept with the header and
// counted as oversize.
func (c *Chunker) chunkTable(block extract.Block, path []string, res *Result) {
	emit := func(text string) {
		tc := c.counter.Count(text)
		if tc > c.params.HardCap {
			res.Oversize++
		}
		res.Chunks = append(res.Chunks, Chunk{
			Text:        text,
			Kind:        "table",
			TokenCount:  tc,
			HeadingPath: clonePath(path),
			Meta:        cloneMeta(block.Meta),
		})
	}

	lines := strings.Split(block.Text, "\n")
	if len(lines) < 3 || c.counter.Count(block.Text) <= c.params.HardCap {
		emit(block.Text)
		return
	}

	header := lines[0] + "\n" + lines[1]
	headerTokens := c.counter.Count(header)
	dataRows := lines[2:]

	var rows []string
	rowTokens := headerTokens

	flushRows := func() {
		if len(rows) == 0 {
			return
		}
		emit(header + "\n" + strings.Join(rows, "\n"))
		rows = nil
		rowTokens = headerTokens
	}

	for _, row := range dataRows {
		rt := c.counter.Count(row)

		if headerTokens+rt > c.params.HardCap {
			flushRows()
			slog.Warn("table row exceeds hard cap, keeping whole",
				"header_tokens", headerTokens,
				"row_tokens", rt,
				"hard_cap", c.params.HardCap)
			emit(header + "\n" + row)
			continue
		}

		if rowTokens+rt > c.params.HardCap && len(rows) > 0 {
			flushRows()
		}
		rows = append(rows, row)
		rowTokens += rt
	}
	flushRows()
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace. Deliberately simple; abbreviations will over-split, which
// only costs slightly smaller chunks.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
