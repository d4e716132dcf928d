package extract

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrInputFormat is returned for a wrong extension or a malformed
	// container.
	ErrInputFormat = errors.New("extract: unsupported or malformed input")

	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("extract: input file not found")

	// ErrEmpty is returned when a document yields zero blocks.
	ErrEmpty = errors.New("extract: no blocks extracted")
)

// Func extracts the ordered block stream from one file.
type Func func(path string) ([]Block, error)

// ByExtension returns the extractor for a file extension (with or
// without the leading dot) plus the canonical source type stored on the
// document row.
func ByExtension(ext string) (Func, string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "docx":
		return DOCX, "docx", nil
	case "pdf":
		return PDF, "pdf", nil
	case "html", "htm":
		return HTML, "html", nil
	default:
		return nil, "", fmt.Errorf("%w: extension %q", ErrInputFormat, ext)
	}
}

// checkFile verifies existence and extension before an extractor opens
// the file, so missing-file and wrong-format errors stay distinct.
func checkFile(path string, exts ...string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrInputFormat, strings.Join(exts, "/"), path)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// collapseWhitespace trims text and folds internal runs of whitespace
// into single spaces.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
