package extract

import "strings"

// tableToMarkdown renders rows of cells as a markdown grid. The first
// row becomes the header, the second line is the `| --- |` separator,
// short rows are right-padded and long rows truncated to the header
// width. Cell newlines become single spaces.
func tableToMarkdown(rows [][]string) string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ""
	}

	// The header row fixes the grid width: short rows are padded,
	// long rows truncated.
	numCols := len(rows[0])

	clean := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, numCols)
		for i := 0; i < numCols; i++ {
			if i < len(row) {
				cells[i] = strings.TrimSpace(strings.ReplaceAll(row[i], "\n", " "))
			}
		}
		clean = append(clean, cells)
	}

	var lines []string
	lines = append(lines, "| "+strings.Join(clean[0], " | ")+" |")

	sep := make([]string, numCols)
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")

	for _, row := range clean[1:] {
		lines = append(lines, "| "+strings.Join(row, " | ")+" |")
	}

	return strings.Join(lines, "\n")
}
