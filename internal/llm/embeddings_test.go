package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func embeddingsServer(t *testing.T, data ...EmbeddingData) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Model: "bge-small-en-v1.5", Data: data})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewEmbeddingsClient(t *testing.T) {
	client := NewEmbeddingsClient("http://localhost:8081/", "test-key", "bge-small-en-v1.5", 384)
	if client.BaseURL != "http://localhost:8081" {
		t.Errorf("NewEmbeddingsClient() BaseURL = %v, want trailing slash trimmed", client.BaseURL)
	}
	if client.ExpectedSize != 384 {
		t.Errorf("NewEmbeddingsClient() ExpectedSize = %v, want 384", client.ExpectedSize)
	}
}

func TestEmbeddingsClient_Request(t *testing.T) {
	var got EmbeddingsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/embeddings" {
			t.Errorf("request = %s %s, want POST /v1/embeddings", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Data: []EmbeddingData{{Embedding: []float64{1, 0, 0}}}})
	}))
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "test-key", "bge-small-en-v1.5", 3)
	if _, err := client.EmbedTexts(context.Background(), []string{"fear of failing exams"}); err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if got.Model != "bge-small-en-v1.5" || !reflect.DeepEqual(got.Input, []string{"fear of failing exams"}) {
		t.Errorf("request body = %+v", got)
	}
}

func TestEmbeddingsClient_EmbedTexts(t *testing.T) {
	passages := []string{
		"You have a right to perform your prescribed duty कर्मण्येवाधिकारस्ते fear",
		"Elevate yourself through the power of your mind उद्धरेदात्मनात्मानं sadness",
	}

	tests := []struct {
		name    string
		size    int
		data    []EmbeddingData
		want    [][]float32
		wantErr bool
	}{
		{
			name: "input order",
			size: 3,
			data: []EmbeddingData{{Embedding: []float64{1, 0, 0}}, {Embedding: []float64{0, 1, 0}}},
			want: [][]float32{{1, 0, 0}, {0, 1, 0}},
		},
		{
			name: "reordered by index",
			size: 3,
			data: []EmbeddingData{{Index: 1, Embedding: []float64{0, 1, 0}}, {Index: 0, Embedding: []float64{1, 0, 0}}},
			want: [][]float32{{1, 0, 0}, {0, 1, 0}},
		},
		{
			name: "float64 values narrowed",
			size: 2,
			data: []EmbeddingData{{Embedding: []float64{1.5, -2.5}}, {Embedding: []float64{0.25, 3.5}}},
			want: [][]float32{{1.5, -2.5}, {0.25, 3.5}},
		},
		{
			name: "size taken from the reply",
			data: []EmbeddingData{{Embedding: []float64{1, 2}}, {Embedding: []float64{3, 4}}},
			want: [][]float32{{1, 2}, {3, 4}},
		},
		{
			name:    "repeated index",
			size:    3,
			data:    []EmbeddingData{{Index: 1, Embedding: []float64{1, 0, 0}}, {Index: 1, Embedding: []float64{0, 1, 0}}},
			wantErr: true,
		},
		{
			name:    "index out of range",
			size:    3,
			data:    []EmbeddingData{{Index: 0, Embedding: []float64{1, 0, 0}}, {Index: 2, Embedding: []float64{0, 1, 0}}},
			wantErr: true,
		},
		{
			name:    "missing vector",
			size:    3,
			data:    []EmbeddingData{{Embedding: []float64{1, 0, 0}}},
			wantErr: true,
		},
		{
			name:    "dimension differs from snapshot",
			size:    384,
			data:    []EmbeddingData{{Embedding: make([]float64, 256)}, {Embedding: make([]float64, 256)}},
			wantErr: true,
		},
		{
			name:    "mixed sizes",
			data:    []EmbeddingData{{Embedding: []float64{1, 2}}, {Embedding: []float64{3}}},
			wantErr: true,
		},
		{
			name:    "empty vectors",
			data:    []EmbeddingData{{}, {}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewEmbeddingsClient(embeddingsServer(t, tt.data...).URL, "test-key", "bge-small-en-v1.5", tt.size)

			got, err := client.EmbedTexts(context.Background(), passages)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EmbedTexts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EmbedTexts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddingsClient_EmptyInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	}))
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "test-key", "bge-small-en-v1.5", 3)
	if _, err := client.EmbedTexts(context.Background(), nil); err == nil {
		t.Error("EmbedTexts() with no texts should return error")
	}
}

func TestEmbeddingsClient_StatusError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTemporary bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantTemporary: true},
		{name: "server down", status: http.StatusServiceUnavailable, wantTemporary: true},
		{name: "unknown model", status: http.StatusNotFound, wantTemporary: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("model bge-small-en-v1.5 unavailable"))
			}))
			defer server.Close()

			client := NewEmbeddingsClient(server.URL, "test-key", "bge-small-en-v1.5", 3)
			_, err := client.EmbedTexts(context.Background(), []string{"mann ashant hai"})

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("EmbedTexts() error = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != tt.status || statusErr.Body != "model bge-small-en-v1.5 unavailable" {
				t.Errorf("StatusError = %+v", statusErr)
			}
			if statusErr.Temporary() != tt.wantTemporary {
				t.Errorf("Temporary() = %v, want %v", statusErr.Temporary(), tt.wantTemporary)
			}
		})
	}
}
