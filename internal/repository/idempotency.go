package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CachedResponse is a stored reply keyed by the caller and their
// Idempotency-Key header. A payment retried inside the retention window
// is answered from here instead of moving money twice.
type CachedResponse struct {
	Key         string
	UserID      uuid.UUID
	RequestHash string
	StatusCode  int
	Body        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Find returns the live cached response for the caller's key, or nil
// when the key is unused or already expired.
func (r *IdempotencyRepository) Find(ctx context.Context, key string, userID uuid.UUID) (*CachedResponse, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND user_id = $2 AND expires_at > now()`,
		key, userID,
	)

	var c CachedResponse
	err := row.Scan(&c.Key, &c.UserID, &c.RequestHash, &c.StatusCode, &c.Body, &c.CreatedAt, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Find: %w", err)
	}
	return &c, nil
}

// Save stores the response for replay. First writer wins: a concurrent
// retry that raced the original keeps the original's stored reply.
func (r *IdempotencyRepository) Save(ctx context.Context, c *CachedResponse) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key, user_id) DO NOTHING`,
		c.Key, c.UserID, c.RequestHash, c.StatusCode, c.Body, c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// PurgeExpired drops entries past retention. Called from a background
// sweep; replay correctness never depends on it because Find filters on
// expiry itself.
func (r *IdempotencyRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: rows affected: %w", err)
	}
	return n, nil
}
