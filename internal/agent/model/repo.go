package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// SessionSnapshot is the persisted per-session state: the bounded message
// window plus the carried-forward plan title.
type SessionSnapshot struct {
	Messages []*schema.Message `json:"messages"`
	Title    string            `json:"title,omitempty"`
}

// SessionRepository persists conversation state between turns. It is read and
// written by the turn engine only, never by individual handlers.
type SessionRepository interface {
	// Load returns the stored snapshot, or an empty snapshot when the session
	// has never been saved. Store unavailability surfaces as a retryable
	// error, never as silently empty state.
	Load(ctx context.Context, sessionID string) (*SessionSnapshot, error)

	// Save truncates messages to the configured window and overwrites the
	// prior record wholesale.
	Save(ctx context.Context, sessionID string, messages []*schema.Message, title string) error
}

// SparseVector is a sparse lexical embedding (e.g. SPLADE) as stored in the
// vector index.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// EmbeddingPair is a dense+sparse embedding cached and queried as one unit.
type EmbeddingPair struct {
	Dense  []float32     `json:"dense"`
	Sparse *SparseVector `json:"sparse,omitempty"`
}

// EmbeddingCache caches embedding computations keyed by normalized query
// text. A miss is an expected outcome, not an error.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, query string, vec []float32) error
	GetEmbeddingPair(ctx context.Context, query string) (*EmbeddingPair, bool, error)
	PutEmbeddingPair(ctx context.Context, query string, pair *EmbeddingPair) error
}

// Booking is a persisted booking record keyed by user and plan title.
type Booking struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Plan      *TourPlan `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BookingRepository persists confirmed bookings. Create is not idempotent and
// must not be retried without a dedup key.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
}
