// Package extract turns uploaded documents into ordered, typed blocks.
// Each supported format (docx, pdf, html) has its own extractor; all of
// them produce the same Block stream so the chunker never needs to know
// which container the text came from.
package extract

// Block kinds emitted by the extractors.
const (
	KindHeading   = "heading"
	KindParagraph = "paragraph"
	KindList      = "list"
	KindTable     = "table"
	KindCode      = "code"
)

// Block is one structural unit of a document, in source order.
// Text is whitespace-trimmed; headings and paragraphs have internal
// whitespace collapsed, tables keep their markdown line structure.
// Blocks are not mutated after extraction.
type Block struct {
	Kind string         `json:"type"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta"`
}

// Heading returns a heading block clamped to levels 1-6.
func Heading(text string, level int) Block {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return Block{Kind: KindHeading, Text: text, Meta: map[string]any{"level": level}}
}

// Paragraph returns a paragraph block with no extra metadata.
func Paragraph(text string) Block {
	return Block{Kind: KindParagraph, Text: text, Meta: map[string]any{}}
}

// ListItem returns a list block holding a single item's text.
func ListItem(text string) Block {
	return Block{Kind: KindList, Text: text, Meta: map[string]any{}}
}

// Table returns a table block carrying the rendered markdown grid.
func Table(markdown string, numRows, numCols int) Block {
	return Block{
		Kind: KindTable,
		Text: markdown,
		Meta: map[string]any{
			"format":   "markdown",
			"num_rows": numRows,
			"num_cols": numCols,
		},
	}
}

// Level reads the heading level from Meta, defaulting to 1.
func (b Block) Level() int {
	if b.Meta == nil {
		return 1
	}
	switch v := b.Meta["level"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 1
}
