package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errx "github.com/tourwise/server/internal/core/error"
)

// Scorer assigns a relevance score to each document for a query. The returned
// slice is aligned with the input order.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// HTTPScorer calls an external cross-encoder reranking service.
// Request body: {"query":"...","documents":["..."],"model":"..."}
// Response body: {"results":[{"index":0,"relevance_score":0.9}]}
type HTTPScorer struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewHTTPScorer(endpoint, model string) *HTTPScorer {
	return &HTTPScorer{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type scoreResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (s *HTTPScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(scoreRequest{
		Query:     query,
		Documents: documents,
		Model:     s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, errx.Infra(err, errx.RetrievalErrorMessage)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("rerank request: %w", err), errx.RetrievalErrorMessage)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.Infra(fmt.Errorf("read rerank response: %w", err), errx.RetrievalErrorMessage)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errx.Infra(fmt.Errorf("rerank: status %d: %s", resp.StatusCode, body), errx.RetrievalErrorMessage)
	}

	var decoded scoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errx.Infra(fmt.Errorf("decode rerank response: %w", err), errx.RetrievalErrorMessage)
	}

	scores := make([]float64, len(documents))
	for _, r := range decoded.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, errx.Infra(fmt.Errorf("rerank: result index %d out of range", r.Index), errx.RetrievalErrorMessage)
		}
		scores[r.Index] = r.RelevanceScore
	}
	return scores, nil
}
