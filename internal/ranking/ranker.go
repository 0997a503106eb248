package ranking

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tourwise/server/internal/retrieval"
	logx "github.com/tourwise/server/pkg/logger"
)

const defaultBatchSize = 8

// Ranker reorders retrieved passages by cross-encoder relevance. Documents
// are scored in batches; the semaphore caps in-flight scoring requests
// across all callers, not per call.
type Ranker struct {
	scorer    Scorer
	sem       chan struct{}
	batchSize int
}

func NewRanker(scorer Scorer, workers int) *Ranker {
	if workers <= 0 {
		workers = 1
	}
	return &Ranker{
		scorer:    scorer,
		sem:       make(chan struct{}, workers),
		batchSize: defaultBatchSize,
	}
}

// Rank scores passages against the query and returns the topK by relevance,
// highest first. Ties keep their retrieval order. A scorer failure degrades
// to the original retrieval order rather than failing the request.
func (r *Ranker) Rank(ctx context.Context, query string, passages []retrieval.ScoredPassage, topK int) []retrieval.ScoredPassage {
	if len(passages) == 0 {
		return nil
	}

	scores, err := r.scoreAll(ctx, query, passages)
	if err != nil {
		logx.Warn().Err(err).Msg("rerank failed, keeping retrieval order")
		return truncate(passages, topK)
	}

	ranked := make([]retrieval.ScoredPassage, len(passages))
	copy(ranked, passages)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return truncate(ranked, topK)
}

func (r *Ranker) scoreAll(ctx context.Context, query string, passages []retrieval.ScoredPassage) ([]float64, error) {
	scores := make([]float64, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(passages); start += r.batchSize {
		end := start + r.batchSize
		if end > len(passages) {
			end = len(passages)
		}
		start, end := start, end
		g.Go(func() error {
			select {
			case r.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-r.sem }()

			docs := make([]string, 0, end-start)
			for _, p := range passages[start:end] {
				docs = append(docs, p.Content)
			}
			batch, err := r.scorer.Score(gctx, query, docs)
			if err != nil {
				return err
			}
			copy(scores[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func truncate(passages []retrieval.ScoredPassage, topK int) []retrieval.ScoredPassage {
	if topK > 0 && len(passages) > topK {
		return passages[:topK]
	}
	return passages
}
