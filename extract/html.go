package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var htmlHeadingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3,
	atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// Non-content elements skipped during the walk.
var htmlSkipTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Nav: true,
	atom.Footer: true, atom.Header: true, atom.Aside: true,
	atom.Noscript: true, atom.Meta: true, atom.Link: true,
}

// HTML extracts blocks from an .html/.htm file.
func HTML(path string) ([]Block, error) {
	if err := checkFile(path, ".html", ".htm"); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening html: %w", err)
	}
	defer f.Close()

	blocks, err := parseHTML(f)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return blocks, nil
}

// parseHTML walks the most specific content root (main > article >
// body > document) and emits blocks in DOM order. A per-document seen
// set elides text repeated verbatim, which templated pages produce a
// lot of.
func parseHTML(r io.Reader) ([]Block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %v", ErrInputFormat, err)
	}

	root := doc
	for _, a := range []atom.Atom{atom.Main, atom.Article, atom.Body} {
		if n := findElement(doc, a); n != nil {
			root = n
			break
		}
	}

	w := &htmlWalker{seen: make(map[string]bool)}
	w.walk(root)
	return w.blocks, nil
}

type htmlWalker struct {
	blocks []Block
	seen   map[string]bool
}

func (w *htmlWalker) emit(b Block) {
	if b.Text == "" || w.seen[b.Text] {
		return
	}
	w.seen[b.Text] = true
	w.blocks = append(w.blocks, b)
}

func (w *htmlWalker) walk(n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		if htmlSkipTags[child.DataAtom] {
			continue
		}

		if level, ok := htmlHeadingLevels[child.DataAtom]; ok {
			if text := collapseWhitespace(nodeText(child)); text != "" {
				w.emit(Heading(text, level))
			}
			continue
		}

		switch child.DataAtom {
		case atom.Table:
			rows := htmlTableRows(child)
			md := tableToMarkdown(rows)
			if strings.TrimSpace(md) != "" {
				w.emit(Table(md, len(rows), len(rows[0])))
			}
		case atom.Ul, atom.Ol:
			for li := child.FirstChild; li != nil; li = li.NextSibling {
				if li.Type == html.ElementNode && li.DataAtom == atom.Li {
					if text := collapseWhitespace(nodeText(li)); text != "" {
						w.emit(ListItem(text))
					}
				}
			}
		case atom.Pre:
			w.emitCode(child)
		case atom.P:
			if text := collapseWhitespace(nodeText(child)); text != "" {
				w.emit(Paragraph(text))
			}
		default:
			// Containers (div, section, article, ...) recurse.
			w.walk(child)
		}
	}
}

// emitCode handles <pre>, preferring an inner <code> element for both
// text and the language-*/lang-* class convention.
func (w *htmlWalker) emitCode(pre *html.Node) {
	codeNode := findElement(pre, atom.Code)
	src := pre
	if codeNode != nil {
		src = codeNode
	}
	text := strings.TrimSpace(rawText(src))
	if text == "" {
		return
	}

	meta := map[string]any{}
	if codeNode != nil {
		if lang := codeLanguage(codeNode); lang != "" {
			meta["language"] = lang
		}
	}
	w.emit(Block{Kind: KindCode, Text: text, Meta: meta})
}

func codeLanguage(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(attr.Val) {
			for _, prefix := range []string{"language-", "lang-"} {
				if strings.HasPrefix(cls, prefix) {
					return strings.TrimPrefix(cls, prefix)
				}
			}
		}
	}
	return ""
}

// htmlTableRows collects cell text row by row: thead rows first, then
// tbody rows (or direct tr children when there is no tbody).
func htmlTableRows(table *html.Node) [][]string {
	var rows [][]string

	appendRows := func(parent *html.Node) {
		for tr := parent.FirstChild; tr != nil; tr = tr.NextSibling {
			if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
				continue
			}
			var cells []string
			for td := tr.FirstChild; td != nil; td = td.NextSibling {
				if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
					cells = append(cells, collapseWhitespace(nodeText(td)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
	}

	for section := table.FirstChild; section != nil; section = section.NextSibling {
		if section.Type != html.ElementNode {
			continue
		}
		switch section.DataAtom {
		case atom.Thead, atom.Tbody, atom.Tfoot:
			appendRows(section)
		case atom.Tr:
			// Tables without section elements keep tr directly under
			// table (the parser may also synthesize a tbody; both paths
			// end up here or above, never twice).
			var cells []string
			for td := section.FirstChild; td != nil; td = td.NextSibling {
				if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
					cells = append(cells, collapseWhitespace(nodeText(td)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
	}

	return rows
}

// findElement returns the first descendant with the given atom, depth
// first, or nil.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}

// nodeText joins all descendant text with spaces (block structure is
// irrelevant once a node is being flattened into one block).
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(n)
	return b.String()
}

// rawText is nodeText without separator insertion, for code blocks
// where whitespace is meaningful.
func rawText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(n)
	return b.String()
}
