// Package embed produces embedding vectors for chunk text. The default
// implementation talks to the embedding sidecar over HTTP; anything
// else satisfying Embedder (a local model handle, a test fake) plugs in
// the same way.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// MaxBatchSize is the upper bound on texts per embed call regardless
// of configuration.
const MaxBatchSize = 256

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("embed: empty input")

// Embedder converts texts to vectors, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// HTTPEmbedder calls the embedding sidecar:
// POST {endpoint}/embed with {"texts": [...]} returning
// {"embeddings": [[...], ...]}.
type HTTPEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTP returns an HTTPEmbedder for the sidecar at endpoint. No
// connection is made until the first Embed call.
func NewHTTP(endpoint, model string) *HTTPEmbedder {
	return &HTTPEmbedder{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the embedding model name recorded on each vector row.
func (e *HTTPEmbedder) Model() string { return e.model }

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed sends one batch to the sidecar.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embed service error: %s", parsed.Error)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Embeddings))
	}

	return parsed.Embeddings, nil
}

// Health probes the sidecar's GET /health endpoint.
func (e *HTTPEmbedder) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("embed health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embed service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// All embeds every text in batches of at most min(batchSize,
// MaxBatchSize), preserving input order. Each vector is checked
// against dim and L2-normalized in place.
func All(ctx context.Context, e Embedder, texts []string, batchSize, dim int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			if dim > 0 && len(v) != dim {
				return nil, fmt.Errorf("embedding %d has dimension %d, want %d", start+i, len(v), dim)
			}
			Normalize(v)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left
// unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
