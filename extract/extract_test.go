package extract

import (
	"errors"
	"testing"
)

func TestByExtension(t *testing.T) {
	cases := []struct {
		ext        string
		sourceType string
	}{
		{".docx", "docx"},
		{".pdf", "pdf"},
		{".html", "html"},
		{".htm", "html"},
		{".HTML", "html"},
	}
	for _, tc := range cases {
		fn, sourceType, err := ByExtension(tc.ext)
		if err != nil {
			t.Errorf("ByExtension(%q): %v", tc.ext, err)
			continue
		}
		if fn == nil {
			t.Errorf("ByExtension(%q) returned nil extractor", tc.ext)
		}
		if sourceType != tc.sourceType {
			t.Errorf("ByExtension(%q) source type = %q, want %q", tc.ext, sourceType, tc.sourceType)
		}
	}
}

func TestByExtensionUnsupported(t *testing.T) {
	for _, ext := range []string{".txt", ".md", ""} {
		if _, _, err := ByExtension(ext); !errors.Is(err, ErrInputFormat) {
			t.Errorf("ByExtension(%q) err = %v, want ErrInputFormat", ext, err)
		}
	}
}
