package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Font-size heuristics for heading detection (points).
const (
	pdfHeadingFontSize = 14.0
	pdfH1FontSize      = 18.0
	pdfH2FontSize      = 16.0
)

// Geometry tolerances (points).
const (
	pdfRuleThickness = 2.0 // a rect at most this thick is a rule line
	pdfLineTolerance = 2.0 // baseline Y delta within one visual line
	pdfBoxPadding    = 1.0
)

// PDF extracts blocks from a .pdf file. Tables are located by
// clustering the rule-line rectangles of the page into boxes; text
// inside a box is bucketed into cells by the rule positions, text
// outside is grouped into visual lines and classified by font size.
func PDF(path string) ([]Block, error) {
	if err := checkFile(path, ".pdf"); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pdf: %v", ErrInputFormat, err)
	}
	defer f.Close()

	var blocks []Block

	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()

		boxes := detectTableBoxes(content.Rect)

		var inside, outside []pdf.Text
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			if boxFor(boxes, t.X, t.Y) >= 0 {
				inside = append(inside, t)
			} else {
				outside = append(outside, t)
			}
		}

		blocks = append(blocks, pdfTextBlocks(outside)...)

		for _, box := range boxes {
			rows := pdfTableRows(box, inside)
			md := tableToMarkdown(rows)
			if strings.TrimSpace(md) == "" {
				continue
			}
			b := Table(md, len(rows), len(rows[0]))
			b.Meta["page"] = pageNum
			blocks = append(blocks, b)
		}
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return blocks, nil
}

// tableBox is a table region reconstructed from rule lines. The xs/ys
// grids are the distinct vertical/horizontal rule positions, which
// double as the cell boundaries.
type tableBox struct {
	minX, minY, maxX, maxY float64
	xs, ys                 []float64
}

func (b tableBox) contains(x, y float64) bool {
	return x >= b.minX-pdfBoxPadding && x <= b.maxX+pdfBoxPadding &&
		y >= b.minY-pdfBoxPadding && y <= b.maxY+pdfBoxPadding
}

func isHorizontalRule(r pdf.Rect) bool {
	return r.Max.Y-r.Min.Y <= pdfRuleThickness && r.Max.X-r.Min.X > pdfRuleThickness
}

func isVerticalRule(r pdf.Rect) bool {
	return r.Max.X-r.Min.X <= pdfRuleThickness && r.Max.Y-r.Min.Y > pdfRuleThickness
}

// detectTableBoxes clusters intersecting rule lines into groups and
// keeps groups with at least two rules in each direction (a single
// underline or margin rule is not a table).
func detectTableBoxes(rects []pdf.Rect) []tableBox {
	var rules []pdf.Rect
	for _, r := range rects {
		if isHorizontalRule(r) || isVerticalRule(r) {
			rules = append(rules, r)
		}
	}
	if len(rules) < 4 {
		return nil
	}

	// Union-find over rules that touch each other.
	parent := make([]int, len(rules))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) { parent[find(a)] = find(b) }

	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			if rectsTouch(rules[i], rules[j]) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]pdf.Rect)
	for i, r := range rules {
		root := find(i)
		groups[root] = append(groups[root], r)
	}

	var boxes []tableBox
	for _, group := range groups {
		box, ok := buildTableBox(group)
		if ok {
			boxes = append(boxes, box)
		}
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].maxY > boxes[j].maxY })
	return boxes
}

func rectsTouch(a, b pdf.Rect) bool {
	return a.Min.X <= b.Max.X+pdfBoxPadding && b.Min.X <= a.Max.X+pdfBoxPadding &&
		a.Min.Y <= b.Max.Y+pdfBoxPadding && b.Min.Y <= a.Max.Y+pdfBoxPadding
}

func buildTableBox(rules []pdf.Rect) (tableBox, bool) {
	var xs, ys []float64
	box := tableBox{minX: rules[0].Min.X, minY: rules[0].Min.Y, maxX: rules[0].Max.X, maxY: rules[0].Max.Y}

	for _, r := range rules {
		box.minX = min64(box.minX, r.Min.X)
		box.minY = min64(box.minY, r.Min.Y)
		box.maxX = max64(box.maxX, r.Max.X)
		box.maxY = max64(box.maxY, r.Max.Y)
		if isVerticalRule(r) {
			xs = appendCoord(xs, (r.Min.X+r.Max.X)/2)
		}
		if isHorizontalRule(r) {
			ys = appendCoord(ys, (r.Min.Y+r.Max.Y)/2)
		}
	}
	if len(xs) < 2 || len(ys) < 2 {
		return tableBox{}, false
	}
	sort.Float64s(xs)
	sort.Float64s(ys)
	box.xs, box.ys = xs, ys
	return box, true
}

// appendCoord merges coordinates closer than the line tolerance, so
// rules drawn in segments produce one boundary.
func appendCoord(coords []float64, v float64) []float64 {
	for _, c := range coords {
		if abs64(c-v) <= pdfLineTolerance {
			return coords
		}
	}
	return append(coords, v)
}

func boxFor(boxes []tableBox, x, y float64) int {
	for i, b := range boxes {
		if b.contains(x, y) {
			return i
		}
	}
	return -1
}

// pdfTableRows buckets the text items inside a box into the cell grid
// formed by its rule positions. PDF Y grows upward, so the top row is
// the band below the highest horizontal rule.
func pdfTableRows(box tableBox, texts []pdf.Text) [][]string {
	numRows := len(box.ys) - 1
	numCols := len(box.xs) - 1
	if numRows < 1 || numCols < 1 {
		return nil
	}

	var items []pdf.Text
	for _, t := range texts {
		if box.contains(t.X, t.Y) {
			items = append(items, t)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if abs64(items[i].Y-items[j].Y) > pdfLineTolerance {
			return items[i].Y > items[j].Y
		}
		return items[i].X < items[j].X
	})

	cells := make([][][]pdf.Text, numRows)
	for i := range cells {
		cells[i] = make([][]pdf.Text, numCols)
	}
	for _, t := range items {
		row := bandIndex(box.ys, t.Y, true)
		col := bandIndex(box.xs, t.X, false)
		if row < 0 || col < 0 {
			continue
		}
		cells[row][col] = append(cells[row][col], t)
	}

	var rows [][]string
	for _, rowCells := range cells {
		row := make([]string, numCols)
		empty := true
		for c, cell := range rowCells {
			row[c] = joinSpans(cell)
			if row[c] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

// bandIndex locates v between adjacent boundaries. For Y the bands are
// numbered top-down (descending coordinate), for X left-to-right.
func bandIndex(bounds []float64, v float64, descending bool) int {
	n := len(bounds) - 1
	for i := 0; i < n; i++ {
		lo, hi := bounds[i], bounds[i+1]
		if v >= lo-pdfBoxPadding && v <= hi+pdfBoxPadding {
			if descending {
				return n - 1 - i
			}
			return i
		}
	}
	return -1
}

// pdfTextBlocks groups loose text into visual lines by baseline, then
// lines into blocks by vertical gap, and classifies each block by its
// dominant font.
func pdfTextBlocks(texts []pdf.Text) []Block {
	lines := groupLines(texts)
	if len(lines) == 0 {
		return nil
	}

	var blocks []Block
	flushBlock := func(group []pdfLine) {
		if len(group) == 0 {
			return
		}
		var parts []string
		maxSize := 0.0
		bold := false
		for _, ln := range group {
			parts = append(parts, ln.text)
			if ln.fontSize > maxSize {
				maxSize = ln.fontSize
			}
			bold = bold || ln.bold
		}
		text := collapseWhitespace(strings.Join(parts, " "))
		if text == "" {
			return
		}
		blocks = append(blocks, classifyPDFBlock(text, maxSize, bold))
	}

	var group []pdfLine
	for _, line := range lines {
		if len(group) > 0 {
			prev := group[len(group)-1]
			gap := prev.y - line.y
			// A new block starts on a large gap or a font-size change
			// (body text following a heading).
			if gap > prev.fontSize*1.8 || abs64(line.fontSize-prev.fontSize) > 1.0 {
				flushBlock(group)
				group = nil
			}
		}
		group = append(group, line)
	}
	flushBlock(group)

	return blocks
}

type pdfLine struct {
	y        float64
	text     string
	fontSize float64
	bold     bool
}

func groupLines(texts []pdf.Text) []pdfLine {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.Slice(sorted, func(i, j int) bool {
		if abs64(sorted[i].Y-sorted[j].Y) > pdfLineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []pdfLine
	var cur []pdf.Text
	flush := func() {
		if len(cur) == 0 {
			return
		}
		line := pdfLine{y: cur[0].Y, text: joinSpans(cur)}
		for _, t := range cur {
			if t.FontSize > line.fontSize {
				line.fontSize = t.FontSize
			}
			if strings.Contains(strings.ToLower(t.Font), "bold") {
				line.bold = true
			}
		}
		if line.text != "" {
			lines = append(lines, line)
		}
		cur = nil
	}

	for _, t := range sorted {
		if len(cur) > 0 && abs64(t.Y-cur[0].Y) > pdfLineTolerance {
			flush()
		}
		cur = append(cur, t)
	}
	flush()
	return lines
}

// joinSpans concatenates text spans in X order, inserting a space when
// the horizontal gap to the previous span indicates a word break.
func joinSpans(spans []pdf.Text) string {
	if len(spans) == 0 {
		return ""
	}
	sorted := make([]pdf.Text, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if abs64(sorted[i].Y-sorted[j].Y) > pdfLineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var b strings.Builder
	prevEnd := 0.0
	prevY := sorted[0].Y
	for i, t := range sorted {
		if i > 0 {
			if abs64(t.Y-prevY) > pdfLineTolerance {
				b.WriteString(" ")
			} else if t.X-prevEnd > 1.0 && !strings.HasPrefix(t.S, " ") && !strings.HasSuffix(b.String(), " ") {
				b.WriteString(" ")
			}
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W
		prevY = t.Y
	}
	return collapseWhitespace(b.String())
}

// classifyPDFBlock applies the font-size heading heuristics: 18pt and
// up is a level-1 heading; 14pt and up, or short bold text, is level 2
// (16pt+) or 3; everything else is a paragraph.
func classifyPDFBlock(text string, fontSize float64, bold bool) Block {
	switch {
	case fontSize >= pdfH1FontSize:
		return Heading(text, 1)
	case fontSize >= pdfHeadingFontSize || (bold && len(text) < 200):
		if fontSize >= pdfH2FontSize {
			return Heading(text, 2)
		}
		return Heading(text, 3)
	default:
		return Paragraph(text)
	}
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
