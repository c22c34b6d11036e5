/*
Package group exposes group membership as a read-only check. Group
administration lives elsewhere; the chat hub trusts callers to have verified
membership before joining a group room.
*/
package group

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Membership answers whether a user belongs to a group.
type Membership interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// PGMembership reads the group_members table.
type PGMembership struct {
	pool *pgxpool.Pool
}

// NewPGMembership returns a Membership backed by pool.
func NewPGMembership(pool *pgxpool.Pool) *PGMembership {
	return &PGMembership{pool: pool}
}

// IsMember reports whether userID is a member of groupID.
func (m *PGMembership) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var ok bool
	err := m.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members
			WHERE group_id = $1 AND user_id = $2::uuid
		)`, groupID, userID).Scan(&ok)
	return ok, err
}
