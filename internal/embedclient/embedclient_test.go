package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestEmbedReturnsVectorsOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{
			Model: "test-model", Dimension: 3,
			Vectors: [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 5, zap.NewNop())
	vecs, dims, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dims != 3 || len(vecs) != 2 {
		t.Fatalf("unexpected result: dims=%d vecs=%v", dims, vecs)
	}
}

func TestEmbedWrapsServerErrorsAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 5, zap.NewNop())
	_, _, err := c.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestEmbedRejectsMismatchedVectorCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Vectors: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 5, zap.NewNop())
	_, _, err := c.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if IsTransient(err) {
		t.Fatalf("mismatch error should not be treated as transient")
	}
}
