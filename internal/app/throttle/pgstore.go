package throttle

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCounterStore keeps the failure counters in the shared login_failures
// table. Increment is a single upsert, so concurrent failures for the same
// username cannot race a read-modify-write.
type PGCounterStore struct {
	pool *pgxpool.Pool
}

// NewPGCounterStore returns a CounterStore backed by pool.
func NewPGCounterStore(pool *pgxpool.Pool) *PGCounterStore {
	return &PGCounterStore{pool: pool}
}

// Increment bumps the counter, restarting expired counters at 1.
func (s *PGCounterStore) Increment(ctx context.Context, username string, expiresAt time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO login_failures (username, fail_count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (username) DO UPDATE
		SET fail_count = CASE
			WHEN login_failures.expires_at <= now() THEN 1
			ELSE login_failures.fail_count + 1
		END,
		    expires_at = EXCLUDED.expires_at
		RETURNING fail_count`,
		username, expiresAt).Scan(&count)
	return count, err
}

// Reset deletes the counter.
func (s *PGCounterStore) Reset(ctx context.Context, username string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM login_failures WHERE username = $1`, username)
	return err
}
