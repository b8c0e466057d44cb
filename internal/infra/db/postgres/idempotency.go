package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentdesk/internal/app/middleware"
)

// IdempotencyStore persists completed command results keyed by the client
// supplied idempotency key.
type IdempotencyStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewIdempotencyStore(db *sql.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, payload, error, occurred_at FROM idempotency_keys WHERE key = $1`, key)
	var rec middleware.IdempotencyRecord
	err := row.Scan(&rec.Key, &rec.Payload, &rec.Error, &rec.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("postgres: load idempotency key: %w", mapError(err))
	}
	if s.ttl > 0 && time.Since(rec.OccurredAt) > s.ttl {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, payload, error, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`,
		rec.Key, rec.Payload, rec.Error, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("postgres: save idempotency key: %w", mapError(err))
	}
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
