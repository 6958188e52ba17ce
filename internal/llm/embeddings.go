package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// EmbeddingsClient embeds passage and query texts through an
// OpenAI-compatible /v1/embeddings endpoint.
type EmbeddingsClient struct {
	BaseURL string
	APIKey  string
	Model   string
	// ExpectedSize is the dimension of the corpus snapshot. With 0 the first
	// vector of each reply sets the size the rest must match.
	ExpectedSize int
	client       *http.Client
}

// NewEmbeddingsClient creates an embeddings client for model.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       newHTTPClient(),
	}
}

// EmbeddingsRequest is the /v1/embeddings request body.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData is one vector of the reply. Index is its position in the
// request input.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse is the /v1/embeddings reply body.
type EmbeddingsResponse struct {
	Model string          `json:"model"`
	Data  []EmbeddingData `json:"data"`
}

// EmbedTexts returns one vector per text, in input order.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	resp, err := postJSON(ctx, c.client, c.BaseURL+"/v1/embeddings", c.APIKey, "", EmbeddingsRequest{
		Model: c.Model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var reply EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(reply.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(reply.Data))
	}

	data, err := inputOrder(reply.Data)
	if err != nil {
		return nil, err
	}

	dim := c.ExpectedSize
	if dim == 0 {
		dim = len(data[0].Embedding)
	}
	vectors := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 || len(d.Embedding) != dim {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(d.Embedding), dim)
		}
		vec := make([]float32, dim)
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// inputOrder arranges vectors by their index. Servers that leave every index
// at zero are taken to reply in input order.
func inputOrder(data []EmbeddingData) ([]EmbeddingData, error) {
	indexed := false
	for _, d := range data {
		if d.Index != 0 {
			indexed = true
			break
		}
	}
	if !indexed {
		return data, nil
	}

	ordered := make([]EmbeddingData, len(data))
	seen := make([]bool, len(data))
	for _, d := range data {
		if d.Index < 0 || d.Index >= len(data) || seen[d.Index] {
			return nil, fmt.Errorf("embedding index %d is out of range or repeated", d.Index)
		}
		seen[d.Index] = true
		ordered[d.Index] = d
	}
	return ordered, nil
}
