package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEmbedderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed" {
			t.Errorf("request = %s %s, want POST /embed", r.Method, r.URL.Path)
		}
		var req struct {
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		vectors := make([][]float32, len(req.Texts))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 0}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "test-model")
	if e.Model() != "test-model" {
		t.Errorf("Model() = %q, want %q", e.Model(), "test-model")
	}

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("len(vectors) = %d, want 3", len(vectors))
	}
	if vectors[2][0] != 2 {
		t.Errorf("vectors[2][0] = %v, want 2", vectors[2][0])
	}
}

func TestHTTPEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, "m").Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("err = nil, want count mismatch")
	}
}

func TestHTTPEmbedderServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "model not loaded"})
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, "m").Embed(context.Background(), []string{"a"})
	if err == nil || err.Error() != "embed service error: model not loaded" {
		t.Errorf("err = %v, want service error", err)
	}
}

func TestHTTPEmbedderNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, "m").Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("err = nil, want status error")
	}
}

func TestHTTPEmbedderEmptyInput(t *testing.T) {
	_, err := NewHTTP("http://unused", "m").Embed(context.Background(), nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewHTTP(srv.URL, "m").Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

// batchRecorder records the size of each Embed call.
type batchRecorder struct {
	batches []int
	dim     int
	err     error
}

func (f *batchRecorder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, len(texts))
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
		out[i][0] = 1
	}
	return out, nil
}

func (f *batchRecorder) Model() string { return "fake" }

func TestAllBatches(t *testing.T) {
	rec := &batchRecorder{dim: 4}
	texts := []string{"a", "b", "c", "d", "e"}

	vectors, err := All(context.Background(), rec, texts, 2, 4)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(vectors) != 5 {
		t.Errorf("len(vectors) = %d, want 5", len(vectors))
	}
	if fmt.Sprint(rec.batches) != "[2 2 1]" {
		t.Errorf("batches = %v, want [2 2 1]", rec.batches)
	}
}

func TestAllDimMismatch(t *testing.T) {
	rec := &batchRecorder{dim: 4}
	_, err := All(context.Background(), rec, []string{"a"}, 2, 8)
	if err == nil {
		t.Fatal("err = nil, want dimension error")
	}
}

func TestAllPropagatesEmbedError(t *testing.T) {
	rec := &batchRecorder{dim: 4, err: errors.New("boom")}
	if _, err := All(context.Background(), rec, []string{"a"}, 2, 4); err == nil {
		t.Fatal("err = nil, want embed error")
	}
}

func TestAllEmptyInput(t *testing.T) {
	rec := &batchRecorder{dim: 4}
	if _, err := All(context.Background(), rec, nil, 2, 4); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}

func TestAllNormalizes(t *testing.T) {
	rec := &batchRecorder{dim: 2}
	vectors, err := All(context.Background(), rec, []string{"a"}, 1, 2)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	var sum float64
	for _, x := range vectors[0] {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("squared norm = %v, want 1", sum)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("normalized = %v, want [0.6 0.8]", v)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
