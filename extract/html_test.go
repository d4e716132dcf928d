package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parseHTMLString(t *testing.T, doc string) []Block {
	t.Helper()
	blocks, err := parseHTML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseHTML: %v", err)
	}
	return blocks
}

func TestHTMLHeadingsAndParagraphs(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body>
		<h1>Title</h1>
		<p>First paragraph.</p>
		<h2>Section</h2>
		<p>Second   paragraph
		with wrapping.</p>
	</body></html>`)

	if len(blocks) != 4 {
		t.Fatalf("len(blocks) = %d, want 4 (%v)", len(blocks), blocks)
	}
	if blocks[0].Kind != KindHeading || blocks[0].Level() != 1 {
		t.Errorf("block 0 = %+v, want h1", blocks[0])
	}
	if blocks[2].Kind != KindHeading || blocks[2].Level() != 2 {
		t.Errorf("block 2 = %+v, want h2", blocks[2])
	}
	if blocks[3].Text != "Second paragraph with wrapping." {
		t.Errorf("block 3 text = %q, want collapsed whitespace", blocks[3].Text)
	}
}

func TestHTMLPrefersMainOverBody(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body>
		<p>outside</p>
		<main><p>inside</p></main>
	</body></html>`)

	if len(blocks) != 1 || blocks[0].Text != "inside" {
		t.Errorf("blocks = %v, want only main content", blocks)
	}
}

func TestHTMLSkipsNonContent(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body>
		<nav><p>menu</p></nav>
		<script>var x = 1;</script>
		<aside><p>sidebar</p></aside>
		<p>real content</p>
		<footer><p>legal</p></footer>
	</body></html>`)

	if len(blocks) != 1 || blocks[0].Text != "real content" {
		t.Errorf("blocks = %v, want only real content", blocks)
	}
}

func TestHTMLTable(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body><table>
		<thead><tr><th>Name</th><th>Price</th></tr></thead>
		<tbody>
			<tr><td>Widget</td><td>10</td></tr>
			<tr><td>Gadget</td><td>20</td></tr>
		</tbody>
	</table></body></html>`)

	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	b := blocks[0]
	if b.Kind != KindTable {
		t.Fatalf("kind = %q, want table", b.Kind)
	}
	lines := strings.Split(b.Text, "\n")
	if lines[0] != "| Name | Price |" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "| --- | --- |" {
		t.Errorf("separator = %q", lines[1])
	}
	if b.Meta["num_rows"] != 3 || b.Meta["num_cols"] != 2 {
		t.Errorf("meta = %v, want num_rows=3 num_cols=2", b.Meta)
	}
}

func TestHTMLTableWithoutSections(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body><table>
		<tr><th>A</th><th>B</th></tr>
		<tr><td>1</td><td>2</td></tr>
	</table></body></html>`)

	if len(blocks) != 1 || blocks[0].Kind != KindTable {
		t.Fatalf("blocks = %v, want one table", blocks)
	}
	if got := strings.Count(blocks[0].Text, "\n"); got != 2 {
		t.Errorf("table has %d newlines, want 2 (header, separator, one row)", got)
	}
}

func TestHTMLListItems(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body><ul>
		<li>first item</li>
		<li>second item</li>
	</ul></body></html>`)

	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}
	for i, b := range blocks {
		if b.Kind != KindList {
			t.Errorf("block %d kind = %q, want list", i, b.Kind)
		}
	}
	if blocks[0].Text != "first item" || blocks[1].Text != "second item" {
		t.Errorf("list texts = %q, %q", blocks[0].Text, blocks[1].Text)
	}
}

func TestHTMLCodeBlock(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body>
		<pre><code class="language-go">func main() {}</code></pre>
	</body></html>`)

	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	b := blocks[0]
	if b.Kind != KindCode {
		t.Errorf("kind = %q, want code", b.Kind)
	}
	if b.Text != "func main() {}" {
		t.Errorf("text = %q", b.Text)
	}
	if b.Meta["language"] != "go" {
		t.Errorf("language = %v, want go", b.Meta["language"])
	}
}

func TestHTMLDeduplicatesRepeatedText(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body>
		<p>repeated banner</p>
		<div><p>repeated banner</p></div>
		<p>unique</p>
	</body></html>`)

	if len(blocks) != 2 {
		t.Errorf("len(blocks) = %d, want 2 (%v)", len(blocks), blocks)
	}
}

func TestHTMLRecursesThroughContainers(t *testing.T) {
	blocks := parseHTMLString(t, `<html><body>
		<div><section><p>deeply nested</p></section></div>
	</body></html>`)

	if len(blocks) != 1 || blocks[0].Text != "deeply nested" {
		t.Errorf("blocks = %v, want nested paragraph", blocks)
	}
}

func TestHTMLFileErrors(t *testing.T) {
	if _, err := HTML(filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Error("missing file: err = nil, want ErrInputNotFound")
	}

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := HTML(path); err == nil {
		t.Error("wrong extension: err = nil, want ErrInputFormat")
	}
}

func TestHTMLEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.html")
	if err := os.WriteFile(path, []byte("<html><body></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := HTML(path); err == nil {
		t.Error("empty document: err = nil, want ErrEmpty")
	}
}
