package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX extracts blocks from a .docx file. Body children (w:p, w:tbl)
// are streamed in source order so paragraphs and tables interleave the
// way they appear in the document.
func DOCX(path string) ([]Block, error) {
	if err := checkFile(path, ".docx"); err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening docx: %v", ErrInputFormat, err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: word/document.xml not found", ErrInputFormat)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	blocks, err := parseDocxBody(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing docx xml: %v", ErrInputFormat, err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return blocks, nil
}

// parseDocxBody walks document.xml with a streaming decoder, emitting
// one block per non-empty paragraph and one table block per top-level
// w:tbl.
func parseDocxBody(r io.Reader) ([]Block, error) {
	decoder := xml.NewDecoder(r)

	var blocks []Block

	inPara := false
	inText := false
	paraStyle := ""
	paraHasNum := false
	var paraText strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				rows, err := parseDocxTable(decoder)
				if err != nil {
					return nil, err
				}
				md := tableToMarkdown(rows)
				if strings.TrimSpace(md) != "" {
					blocks = append(blocks, Table(md, len(rows), len(rows[0])))
				}
			case "p":
				inPara = true
				paraStyle = ""
				paraHasNum = false
				paraText.Reset()
			case "pStyle":
				if inPara {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							paraStyle = attr.Value
						}
					}
				}
			case "numPr":
				if inPara {
					paraHasNum = true
				}
			case "t":
				if inPara {
					inText = true
				}
			}

		case xml.CharData:
			if inText {
				paraText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					if b, ok := classifyDocxPara(paraText.String(), paraStyle, paraHasNum); ok {
						blocks = append(blocks, b)
					}
					inPara = false
				}
			}
		}
	}

	return blocks, nil
}

// parseDocxTable consumes tokens until the matching w:tbl end element,
// collecting one string per cell. Text from tables nested inside cells
// is flattened into the enclosing cell.
func parseDocxTable(decoder *xml.Decoder) ([][]string, error) {
	var rows [][]string
	var row []string
	var cell strings.Builder

	tblDepth := 1
	cellDepth := 0
	inText := false

	for tblDepth > 0 {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				cellDepth++
				if cellDepth == 1 {
					cell.Reset()
				}
			case "t":
				if cellDepth > 0 {
					inText = true
				}
			case "p":
				// Paragraph breaks inside a cell become spaces.
				if cellDepth > 0 && cell.Len() > 0 {
					cell.WriteString(" ")
				}
			}

		case xml.CharData:
			if inText {
				cell.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tc":
				cellDepth--
				if cellDepth == 0 {
					row = append(row, collapseWhitespace(cell.String()))
				}
			case "tr":
				if tblDepth == 1 && len(row) > 0 {
					rows = append(rows, row)
					row = nil
				}
			case "tbl":
				tblDepth--
			}
		}
	}

	return rows, nil
}

// classifyDocxPara maps a paragraph's style onto a block kind. A
// "Heading N" style becomes a level-N heading; list/bullet/number
// styles or explicit numbering become list items; everything else is a
// paragraph. Empty text is dropped.
func classifyDocxPara(text, style string, hasNum bool) (Block, bool) {
	text = collapseWhitespace(text)
	if text == "" {
		return Block{}, false
	}

	lower := strings.ToLower(style)
	if strings.HasPrefix(lower, "heading") {
		return Heading(text, docxHeadingLevel(style)), true
	}
	if hasNum || strings.Contains(lower, "list") ||
		strings.Contains(lower, "bullet") || strings.Contains(lower, "number") {
		return ListItem(text), true
	}
	return Paragraph(text), true
}

// docxHeadingLevel parses the numeric suffix of a "Heading N" style,
// defaulting to 1 when absent or malformed.
func docxHeadingLevel(style string) int {
	rest := strings.TrimSpace(style[len("heading"):])
	level := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 1
		}
		level = level*10 + int(r-'0')
	}
	if level == 0 {
		return 1
	}
	return level
}
