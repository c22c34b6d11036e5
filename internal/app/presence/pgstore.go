package presence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on the shared presence table. Every method is one
// SQL statement, so concurrent binds and unbinds for different connections
// never need cross-connection locking.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Bind upserts the user's binding. The user_id primary key makes a rebind for
// the same user replace the old conn_id atomically.
func (s *PGStore) Bind(ctx context.Context, userID, connID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO presence (user_id, conn_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET conn_id = EXCLUDED.conn_id, expires_at = EXCLUDED.expires_at`,
		userID, connID, expiresAt)
	return err
}

// Unbind deletes the binding for connID, returning the user id it held.
func (s *PGStore) Unbind(ctx context.Context, connID string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM presence WHERE conn_id = $1 RETURNING user_id`, connID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Touch pushes the binding's expiry forward.
func (s *PGStore) Touch(ctx context.Context, connID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE presence SET expires_at = $2 WHERE conn_id = $1`, connID, expiresAt)
	return err
}

// IsOnline checks for an unexpired binding.
func (s *PGStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	var online bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM presence WHERE user_id = $1 AND expires_at > now())`,
		userID).Scan(&online)
	return online, err
}

// OnlineCount counts unexpired bindings.
func (s *PGStore) OnlineCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM presence WHERE expires_at > now()`).Scan(&count)
	return count, err
}

// OnlineUserIDs lists users with unexpired bindings.
func (s *PGStore) OnlineUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM presence WHERE expires_at > now()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Reap removes expired bindings.
func (s *PGStore) Reap(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM presence WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
