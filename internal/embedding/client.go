package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
)

// TextEncoder produces vector representations of text.
type TextEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodePair(ctx context.Context, text string) (*model.EmbeddingPair, error)
}

// HTTPEncoder generates embeddings via an Ollama-compatible embedding server.
// Sparse vectors come from the companion /api/sparse_embed endpoint exposed by
// the same service.
type HTTPEncoder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewHTTPEncoder(baseURL, model string) *HTTPEncoder {
	return &HTTPEncoder{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type sparseEmbedResponse struct {
	Embeddings []struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"embeddings"`
}

// Encode generates a dense embedding vector for the given text.
func (c *HTTPEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := c.post(ctx, "/api/embed", embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	var result embedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errx.Infra(fmt.Errorf("decode embed response: %w", err), errx.RetrievalErrorMessage)
	}
	if len(result.Embeddings) == 0 {
		return nil, errx.Infra(fmt.Errorf("embedding server returned no embeddings"), errx.RetrievalErrorMessage)
	}
	return result.Embeddings[0], nil
}

// EncodePair generates a dense and a sparse embedding for the given text.
func (c *HTTPEncoder) EncodePair(ctx context.Context, text string) (*model.EmbeddingPair, error) {
	dense, err := c.Encode(ctx, text)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "/api/sparse_embed", embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	var result sparseEmbedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errx.Infra(fmt.Errorf("decode sparse embed response: %w", err), errx.RetrievalErrorMessage)
	}
	if len(result.Embeddings) == 0 {
		return nil, errx.Infra(fmt.Errorf("embedding server returned no sparse embeddings"), errx.RetrievalErrorMessage)
	}

	return &model.EmbeddingPair{
		Dense: dense,
		Sparse: &model.SparseVector{
			Indices: result.Embeddings[0].Indices,
			Values:  result.Embeddings[0].Values,
		},
	}, nil
}

// HealthCheck verifies the embedding server is reachable.
func (c *HTTPEncoder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return errx.Infra(err, errx.RetrievalErrorMessage)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errx.Infra(fmt.Errorf("embedding health check: %w", err), errx.RetrievalErrorMessage)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errx.Infra(fmt.Errorf("embedding health check: status %d", resp.StatusCode), errx.RetrievalErrorMessage)
	}
	return nil
}

func (c *HTTPEncoder) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, errx.Infra(err, errx.RetrievalErrorMessage)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("embed %s: %w", path, err), errx.RetrievalErrorMessage)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("read embed response: %w", err), errx.RetrievalErrorMessage)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errx.Infra(fmt.Errorf("embed %s: status %d: %s", path, resp.StatusCode, body), errx.RetrievalErrorMessage)
	}
	return body, nil
}
