package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = pgx.ErrNoRows

// Store persists accounts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id::text, username, password_hash, nickname, avatar_url, role, status, created_at, last_login_at`

// scanUser maps one row onto a User, normalizing nullable columns.
func scanUser(row pgx.Row) (User, error) {
	var u User
	var nickname, avatar pgtype.Text
	var lastLogin pgtype.Timestamptz

	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &nickname, &avatar,
		&u.Role, &u.Status, &u.CreatedAt, &lastLogin)
	if err != nil {
		return User{}, err
	}

	u.Nickname = nickname.String
	u.Avatar = avatar.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}

	return u, nil
}

// Create inserts a new customer account and returns it.
func (s *Store) Create(ctx context.Context, username, passwordHash, nickname string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, nickname)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		username, passwordHash, nickname)

	return scanUser(row)
}

// GetByUsername fetches an account by login name.
func (s *Store) GetByUsername(ctx context.Context, username string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetByID fetches an account by id.
func (s *Store) GetByID(ctx context.Context, id string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id)
	return scanUser(row)
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1::uuid`, id, passwordHash)
	return err
}

// UpdateLastLogin stamps last_login_at with the current time.
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login_at = now() WHERE id = $1::uuid`, id)
	return err
}

// Freeze flips the account status to frozen. The login throttle calls this
// exactly once, at the failure-threshold transition.
func (s *Store) Freeze(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET status = $2 WHERE username = $1`, username, StatusFrozen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("freeze: no account named %q", username)
	}
	return nil
}
