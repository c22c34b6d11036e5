/*
Package friend exposes the friend relation as a read-only gate.

Edges are directed (initiator, acceptor) but two users count as friends when
an edge exists in either direction. Creating and removing relations, and the
bulk message deletion that follows a removal, belong to the relation owner;
the chat core only asks IsFriend.
*/
package friend

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Checker answers whether two users may exchange direct messages.
type Checker interface {
	IsFriend(ctx context.Context, userA, userB string) (bool, error)
}

// PGChecker reads the friends edge table.
type PGChecker struct {
	pool *pgxpool.Pool
}

// NewPGChecker returns a Checker backed by pool.
func NewPGChecker(pool *pgxpool.Pool) *PGChecker {
	return &PGChecker{pool: pool}
}

// IsFriend reports whether an edge exists between the two users in either
// direction.
func (c *PGChecker) IsFriend(ctx context.Context, userA, userB string) (bool, error) {
	var ok bool
	err := c.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM friends
			WHERE (user_id = $1::uuid AND friend_id = $2::uuid)
			   OR (user_id = $2::uuid AND friend_id = $1::uuid)
		)`, userA, userB).Scan(&ok)
	return ok, err
}
