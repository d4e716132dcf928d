// Package token adapts a BPE tokenizer behind a small counting
// interface so chunk budgets are computed with the same encoding the
// serving side uses.
package token

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the cl100k_base encoding used by most current
// embedding and chat models.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// Encoder is a Counter backed by a tiktoken encoding.
type Encoder struct {
	tk *tiktoken.Tiktoken
}

var (
	mu       sync.Mutex
	encoders = map[string]*Encoder{}
)

// Load returns the process-wide encoder for the given encoding name,
// initializing it on first use. Loading pulls in the BPE tables, which
// is why callers defer this until a job actually needs to count.
func Load(encoding string) (*Encoder, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	mu.Lock()
	defer mu.Unlock()

	if enc, ok := encoders[encoding]; ok {
		return enc, nil
	}
	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encoding, err)
	}
	enc := &Encoder{tk: tk}
	encoders[encoding] = enc
	return enc, nil
}

// Count returns the number of BPE tokens in text.
func (e *Encoder) Count(text string) int {
	return len(e.tk.Encode(text, nil, nil))
}
