package embedding

import (
	"context"

	"github.com/tourwise/server/internal/agent/model"
	logx "github.com/tourwise/server/pkg/logger"
)

// CachedEncoder wraps a TextEncoder with a normalized-query cache. Cache
// failures never fail the request: a broken read falls through to a live
// encode and a broken write is logged and dropped.
type CachedEncoder struct {
	encoder TextEncoder
	cache   model.EmbeddingCache
}

func NewCachedEncoder(encoder TextEncoder, cache model.EmbeddingCache) *CachedEncoder {
	return &CachedEncoder{encoder: encoder, cache: cache}
}

// Encode returns the dense embedding for text, using the cache when available.
func (e *CachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if vec, ok, err := e.cache.GetEmbedding(ctx, text); err != nil {
		logx.Warn().Err(err).Msg("embedding cache read failed, recomputing")
	} else if ok {
		return vec, nil
	}

	vec, err := e.encoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.PutEmbedding(ctx, text, vec); err != nil {
		logx.Warn().Err(err).Msg("embedding cache write failed")
	}
	return vec, nil
}

// EncodePair returns the dense+sparse embeddings for text, cached as a unit.
func (e *CachedEncoder) EncodePair(ctx context.Context, text string) (*model.EmbeddingPair, error) {
	if pair, ok, err := e.cache.GetEmbeddingPair(ctx, text); err != nil {
		logx.Warn().Err(err).Msg("embedding cache read failed, recomputing")
	} else if ok {
		return pair, nil
	}

	pair, err := e.encoder.EncodePair(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.PutEmbeddingPair(ctx, text, pair); err != nil {
		logx.Warn().Err(err).Msg("embedding cache write failed")
	}
	return pair, nil
}
