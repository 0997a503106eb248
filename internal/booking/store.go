package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
	logx "github.com/tourwise/server/pkg/logger"
)

// Store persists bookings in Postgres.
type Store struct {
	DB *sql.DB
}

// NewStore opens the Postgres connection and ensures the bookings table
// exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errx.Infra(fmt.Errorf("ping postgres: %w", err), errx.BookingErrorMessage)
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS bookings (
            id UUID PRIMARY KEY,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            plan JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`)
	if err != nil {
		return fmt.Errorf("ensure bookings schema: %w", err)
	}
	return nil
}

// Create inserts a new booking record, filling in its ID and creation time.
func (s *Store) Create(ctx context.Context, b *model.Booking) error {
	b.ID = uuid.NewString()

	var plan []byte
	if b.Plan != nil {
		var err error
		plan, err = json.Marshal(b.Plan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
	}

	row := s.DB.QueryRowContext(ctx, `
        INSERT INTO bookings (id, user_id, title, plan)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`,
		b.ID, b.UserID, b.Title, nullableJSON(plan))
	if err := row.Scan(&b.CreatedAt); err != nil {
		logx.Error().Err(err).Str("user_id", b.UserID).Msg("failed to insert booking")
		return errx.Infra(err, errx.BookingErrorMessage)
	}
	return nil
}

// ListByUser returns a user's bookings, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, user_id, title, plan, created_at
        FROM bookings
        WHERE user_id = $1
        ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errx.Infra(err, errx.BookingErrorMessage)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var (
			b    model.Booking
			plan sql.NullString
			ts   time.Time
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &plan, &ts); err != nil {
			return nil, errx.Infra(err, errx.BookingErrorMessage)
		}
		b.CreatedAt = ts
		if plan.Valid {
			var p model.TourPlan
			if err := json.Unmarshal([]byte(plan.String), &p); err == nil {
				b.Plan = &p
			}
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Infra(err, errx.BookingErrorMessage)
	}
	return bookings, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ model.BookingRepository = (*Store)(nil)
