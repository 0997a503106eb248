package repo

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
	logx "github.com/tourwise/server/pkg/logger"
)

// RedisSessionRepository persists session snapshots and cached embeddings.
// Sessions are whole-record writes under one key; embeddings are keyed by a
// normalized query hash with a fixed TTL.
type RedisSessionRepository struct {
	rdb         redis.Cmdable
	maxMessages int
	cacheTTL    time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, maxMessages int, cacheTTL time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{
		rdb:         rdb,
		maxMessages: maxMessages,
		cacheTTL:    cacheTTL,
	}
}

func (r *RedisSessionRepository) sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// embeddingKey hashes the normalized query so equivalent queries share one
// cache entry regardless of case or surrounding whitespace.
func embeddingKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return fmt.Sprintf("embedding:%x", sha256.Sum256([]byte(normalized)))
}

func (r *RedisSessionRepository) Load(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	key := r.sessionKey(sessionID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.SessionSnapshot{Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}

	return decodeSnapshot(sessionID, raw), nil
}

// decodeSnapshot tolerates legacy records: a value that is not a structured
// snapshot but decodes as a bare message array is treated as messages with
// no title. Anything else decodes to an empty snapshot.
func decodeSnapshot(sessionID, raw string) *model.SessionSnapshot {
	var snapshot model.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err == nil && snapshot.Messages != nil {
		return &snapshot
	}

	var messages []*schema.Message
	if err := json.Unmarshal([]byte(raw), &messages); err == nil {
		return &model.SessionSnapshot{Messages: messages}
	}

	logx.Warn().Str("session_id", sessionID).Msg("malformed session record, starting empty")
	return &model.SessionSnapshot{Messages: []*schema.Message{}}
}

func (r *RedisSessionRepository) Save(ctx context.Context, sessionID string, messages []*schema.Message, title string) error {
	snapshot := &model.SessionSnapshot{
		Messages: truncateWindow(messages, r.maxMessages),
		Title:    title,
	}

	b, err := json.Marshal(snapshot)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal session snapshot")
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	key := r.sessionKey(sessionID)
	if err := r.rdb.Set(ctx, key, b, 0).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save session to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// truncateWindow keeps the last max messages.
func truncateWindow(messages []*schema.Message, max int) []*schema.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	return messages[len(messages)-max:]
}

func (r *RedisSessionRepository) GetEmbedding(ctx context.Context, query string) ([]float32, bool, error) {
	key := embeddingKey(query)
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errx.WrapRedis(err)
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		logx.Warn().Str("key", key).Msg("malformed cached embedding, treating as miss")
		return nil, false, nil
	}
	return vec, true, nil
}

func (r *RedisSessionRepository) PutEmbedding(ctx context.Context, query string, vec []float32) error {
	b, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	if err := r.rdb.Set(ctx, embeddingKey(query), b, r.cacheTTL).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) GetEmbeddingPair(ctx context.Context, query string) (*model.EmbeddingPair, bool, error) {
	key := embeddingKey(query) + ":pair"
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errx.WrapRedis(err)
	}

	var pair model.EmbeddingPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		logx.Warn().Str("key", key).Msg("malformed cached embedding pair, treating as miss")
		return nil, false, nil
	}
	return &pair, true, nil
}

func (r *RedisSessionRepository) PutEmbeddingPair(ctx context.Context, query string, pair *model.EmbeddingPair) error {
	b, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal embedding pair: %w", err)
	}
	if err := r.rdb.Set(ctx, embeddingKey(query)+":pair", b, r.cacheTTL).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
var _ model.EmbeddingCache = (*RedisSessionRepository)(nil)
