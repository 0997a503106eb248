package retrieval

import (
	"context"
	"fmt"

	"github.com/tourwise/server/internal/embedding"
	"github.com/tourwise/server/internal/vectorstore"
	logx "github.com/tourwise/server/pkg/logger"
)

// Searcher retrieves scored passages for a query, optionally constrained by
// exact-match metadata filters.
type Searcher interface {
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredPassage, error)
	HybridSearch(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredPassage, error)
}

// SearchService embeds queries and searches the vector store.
type SearchService struct {
	encoder    embedding.TextEncoder
	store      *vectorstore.QdrantClient
	collection string
}

func NewSearchService(encoder embedding.TextEncoder, store *vectorstore.QdrantClient, collection string) *SearchService {
	return &SearchService{
		encoder:    encoder,
		store:      store,
		collection: collection,
	}
}

// Search runs a dense-only similarity search.
func (s *SearchService) Search(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredPassage, error) {
	vec, err := s.encoder.Encode(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.store.Search(ctx, s.collection, vec, k, filter)
	if err != nil {
		return nil, err
	}

	passages := toPassages(results)
	logx.Debug().
		Str("query", query).
		Int("k", k).
		Int("hits", len(passages)).
		Msg("dense search")
	return passages, nil
}

// HybridSearch fuses dense and sparse retrieval for higher recall.
func (s *SearchService) HybridSearch(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredPassage, error) {
	pair, err := s.encoder.EncodePair(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.store.HybridSearch(ctx, s.collection, pair, k, filter)
	if err != nil {
		return nil, err
	}

	passages := toPassages(results)
	logx.Debug().
		Str("query", query).
		Int("k", k).
		Int("hits", len(passages)).
		Msg("hybrid search")
	return passages, nil
}

func toPassages(results []vectorstore.SearchResult) []ScoredPassage {
	passages := make([]ScoredPassage, 0, len(results))
	for _, r := range results {
		p := ScoredPassage{Score: r.Score}
		p.ID = r.ID
		p.Metadata = make(map[string]string, len(r.Payload))
		for key, val := range r.Payload {
			str, ok := val.(string)
			if !ok {
				str = fmt.Sprint(val)
			}
			if key == "content" {
				p.Content = str
				continue
			}
			p.Metadata[key] = str
		}
		passages = append(passages, p)
	}
	return passages
}
