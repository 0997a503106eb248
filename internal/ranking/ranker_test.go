package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tourwise/server/internal/retrieval"
)

type scorerFunc func(ctx context.Context, query string, documents []string) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	return f(ctx, query, documents)
}

func passages(contents ...string) []retrieval.ScoredPassage {
	out := make([]retrieval.ScoredPassage, len(contents))
	for i, c := range contents {
		out[i].Content = c
	}
	return out
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		scores := make([]float64, len(docs))
		for i, d := range docs {
			switch d {
			case "best":
				scores[i] = 0.9
			case "middle":
				scores[i] = 0.5
			default:
				scores[i] = 0.1
			}
		}
		return scores, nil
	})

	ranked := NewRanker(scorer, 2).Rank(context.Background(), "q", passages("worst", "best", "middle"), 3)
	require.Equal(t, []string{"best", "middle", "worst"}, retrieval.Contents(ranked))
}

func TestRankTruncatesToTopK(t *testing.T) {
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		return make([]float64, len(docs)), nil
	})

	ranked := NewRanker(scorer, 1).Rank(context.Background(), "q", passages("a", "b", "c", "d"), 2)
	require.Len(t, ranked, 2)
}

func TestRankTiesKeepRetrievalOrder(t *testing.T) {
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		return make([]float64, len(docs)), nil
	})

	ranked := NewRanker(scorer, 2).Rank(context.Background(), "q", passages("first", "second", "third"), 3)
	require.Equal(t, []string{"first", "second", "third"}, retrieval.Contents(ranked))
}

func TestRankEmptyInput(t *testing.T) {
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		t.Fatal("scorer must not be called for empty input")
		return nil, nil
	})

	require.Empty(t, NewRanker(scorer, 2).Rank(context.Background(), "q", nil, 3))
}

func TestRankDegradesToRetrievalOrderOnScorerFailure(t *testing.T) {
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		return nil, errors.New("rerank service down")
	})

	ranked := NewRanker(scorer, 2).Rank(context.Background(), "q", passages("a", "b", "c"), 2)
	require.Equal(t, []string{"a", "b"}, retrieval.Contents(ranked))
}

func TestRankScoresAcrossBatches(t *testing.T) {
	// more passages than one batch so the bounded workers actually split work
	var contents []string
	for i := 0; i < defaultBatchSize*3; i++ {
		contents = append(contents, "doc")
	}
	contents = append(contents, "winner")

	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		scores := make([]float64, len(docs))
		for i, d := range docs {
			if d == "winner" {
				scores[i] = 1
			}
		}
		return scores, nil
	})

	ranked := NewRanker(scorer, 2).Rank(context.Background(), "q", passages(contents...), 1)
	require.Equal(t, []string{"winner"}, retrieval.Contents(ranked))
}

func TestRankBoundsScoringAcrossConcurrentCalls(t *testing.T) {
	const workers = 2

	var inflight, peak atomic.Int64
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return make([]float64, len(docs)), nil
	})

	ranker := NewRanker(scorer, workers)
	docs := make([]string, defaultBatchSize*4)
	for i := range docs {
		docs[i] = "doc"
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ranker.Rank(context.Background(), "q", passages(docs...), 3)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int64(workers))
}

func TestHTTPScorerParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "best hotel in pokhara", req.Query)
		require.Len(t, req.Documents, 2)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "relevance_score": 0.8},
				{"index": 0, "relevance_score": 0.2},
			},
		})
	}))
	defer srv.Close()

	scores, err := NewHTTPScorer(srv.URL, "test-model").Score(context.Background(), "best hotel in pokhara", []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []float64{0.2, 0.8}, scores)
}

func TestHTTPScorerRejectsOutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 5, "relevance_score": 0.8}},
		})
	}))
	defer srv.Close()

	_, err := NewHTTPScorer(srv.URL, "test-model").Score(context.Background(), "q", []string{"a"})
	require.Error(t, err)
}

func TestHTTPScorerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPScorer(srv.URL, "test-model").Score(context.Background(), "q", []string{"a"})
	require.Error(t, err)
}
