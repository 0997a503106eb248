package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// QdrantClient interfaces with the Qdrant REST API for vector operations.
// Collections carry a named dense vector plus a named sparse vector so the
// same collection serves dense-only and hybrid queries.
type QdrantClient struct {
	baseURL    string
	httpClient *http.Client
	dimension  int
}

func NewQdrantClient(baseURL string, dimension int) *QdrantClient {
	return &QdrantClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dimension: dimension,
	}
}

// Point represents a vector point in Qdrant. IDs must be UUIDs.
type Point struct {
	ID      string
	Vectors model.EmbeddingPair
	Payload map[string]any
}

// SearchResult is a single scored result from Qdrant.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// HealthCheck verifies Qdrant connectivity.
func (c *QdrantClient) HealthCheck(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errx.Infra(fmt.Errorf("status %d", resp.StatusCode), errx.RetrievalErrorMessage)
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (c *QdrantClient) EnsureCollection(ctx context.Context, name string) error {
	resp, err := c.get(ctx, "/collections/"+name)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     c.dimension,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}
	_, err = c.send(ctx, http.MethodPut, "/collections/"+name, body)
	return err
}

// Upsert inserts or updates vector points in a collection.
func (c *QdrantClient) Upsert(ctx context.Context, collection string, points []Point) error {
	encoded := make([]map[string]any, 0, len(points))
	for _, p := range points {
		vectors := map[string]any{
			denseVectorName: p.Vectors.Dense,
		}
		if p.Vectors.Sparse != nil {
			vectors[sparseVectorName] = map[string]any{
				"indices": p.Vectors.Sparse.Indices,
				"values":  p.Vectors.Sparse.Values,
			}
		}
		encoded = append(encoded, map[string]any{
			"id":      p.ID,
			"vector":  vectors,
			"payload": p.Payload,
		})
	}

	_, err := c.send(ctx, http.MethodPut, "/collections/"+collection+"/points", map[string]any{
		"points": encoded,
	})
	return err
}

// Search runs a dense similarity search with an exact-match metadata filter.
func (c *QdrantClient) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]string) ([]SearchResult, error) {
	body := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if f := encodeFilter(filter); f != nil {
		body["filter"] = f
	}

	respBody, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []SearchResult `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errx.Infra(fmt.Errorf("decode search response: %w", err), errx.RetrievalErrorMessage)
	}
	return resp.Result, nil
}

// HybridSearch fuses dense and sparse sub-queries with reciprocal rank fusion
// via the query API. The filter applies to both branches.
func (c *QdrantClient) HybridSearch(ctx context.Context, collection string, pair *model.EmbeddingPair, limit int, filter map[string]string) ([]SearchResult, error) {
	if pair == nil || pair.Sparse == nil {
		return nil, errx.Infra(fmt.Errorf("hybrid search requires a dense+sparse pair"), errx.RetrievalErrorMessage)
	}

	f := encodeFilter(filter)
	prefetchLimit := limit * 4
	dense := map[string]any{
		"query": pair.Dense,
		"using": denseVectorName,
		"limit": prefetchLimit,
	}
	sparse := map[string]any{
		"query": map[string]any{
			"indices": pair.Sparse.Indices,
			"values":  pair.Sparse.Values,
		},
		"using": sparseVectorName,
		"limit": prefetchLimit,
	}
	if f != nil {
		dense["filter"] = f
		sparse["filter"] = f
	}

	body := map[string]any{
		"prefetch":     []any{dense, sparse},
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        limit,
		"with_payload": true,
	}

	respBody, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/query", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Points []SearchResult `json:"points"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errx.Infra(fmt.Errorf("decode query response: %w", err), errx.RetrievalErrorMessage)
	}
	return resp.Result.Points, nil
}

// DeletePoints removes points by their IDs from a collection.
func (c *QdrantClient) DeletePoints(ctx context.Context, collection string, ids []string) error {
	_, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/delete", map[string]any{
		"points": ids,
	})
	return err
}

// encodeFilter turns an exact-match conjunction into a Qdrant must filter.
// Keys are sorted so request bodies are deterministic.
func encodeFilter(filter map[string]string) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": filter[k]},
		})
	}
	return map[string]any{"must": must}
}

func (c *QdrantClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errx.Infra(err, errx.RetrievalErrorMessage)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("qdrant GET %s: %w", path, err), errx.RetrievalErrorMessage)
	}
	return resp, nil
}

func (c *QdrantClient) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, errx.Infra(err, errx.RetrievalErrorMessage)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("qdrant %s %s: %w", method, path, err), errx.RetrievalErrorMessage)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("read response: %w", err), errx.RetrievalErrorMessage)
	}

	if resp.StatusCode >= 400 {
		return nil, errx.Infra(fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, respBody), errx.RetrievalErrorMessage)
	}
	return respBody, nil
}
