/*
Package presence tracks which users currently hold a live connection.

The registry maps a connection id to a logical user and back, and maintains
the online set. All state lives in a shared store behind the Store interface
so the design holds under horizontal scale-out; every mutation is a single
atomic round-trip against that store. Entries carry a TTL refreshed on
activity, so connections that vanish without a clean disconnect expire on
their own.
*/
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

// Store is the narrow interface the registry needs from the shared store.
// Implementations must make each method a single atomic operation.
type Store interface {
	// Bind associates userID with connID and adds the user to the online
	// set, expiring at expiresAt. A prior binding for the same user is
	// overwritten (last writer wins); the old connection is not closed here.
	Bind(ctx context.Context, userID, connID string, expiresAt time.Time) error

	// Unbind removes the binding for connID and returns the user id that was
	// bound, or "" when the connection was unknown (no-op).
	Unbind(ctx context.Context, connID string) (string, error)

	// Touch pushes the expiry of connID's binding to expiresAt.
	Touch(ctx context.Context, connID string, expiresAt time.Time) error

	// IsOnline reports whether userID has a live, unexpired binding.
	IsOnline(ctx context.Context, userID string) (bool, error)

	// OnlineCount returns the size of the online set.
	OnlineCount(ctx context.Context) (int, error)

	// OnlineUserIDs returns the ids in the online set.
	OnlineUserIDs(ctx context.Context) ([]string, error)

	// Reap deletes expired bindings and returns how many were removed.
	Reap(ctx context.Context) (int, error)
}

// Registry is the presence component used by the chat hub and handlers.
type Registry struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRegistry returns a registry whose entries live for ttl between refreshes.
func NewRegistry(store Store, ttl time.Duration) *Registry {
	return &Registry{
		store:  store,
		ttl:    ttl,
		logger: logx.Logger().With().Str("component", "presence").Logger(),
	}
}

// Bind marks user as online on connID. A stale binding for the same user is
// replaced without error.
func (r *Registry) Bind(ctx context.Context, userID, connID string) error {
	return r.store.Bind(ctx, userID, connID, time.Now().Add(r.ttl))
}

// Unbind removes connID's binding and reports which user went offline.
// Unbinding an unknown connection is a no-op and returns "".
func (r *Registry) Unbind(ctx context.Context, connID string) string {
	userID, err := r.store.Unbind(ctx, connID)
	if err != nil {
		r.logger.Error().Err(err).Str("conn_id", connID).Msg("Unbind failed")
		return ""
	}
	return userID
}

// Touch refreshes the TTL of connID's binding. Called on connection activity.
func (r *Registry) Touch(ctx context.Context, connID string) {
	if err := r.store.Touch(ctx, connID, time.Now().Add(r.ttl)); err != nil {
		r.logger.Warn().Err(err).Str("conn_id", connID).Msg("Presence touch failed")
	}
}

// IsOnline reports whether user currently holds a live binding.
//
// Fail-open: a store error yields false, meaning "cannot prove online", not
// "confirmed offline". Duplicate-login prevention can therefore be bypassed
// during a store outage; availability is deliberately favored here.
func (r *Registry) IsOnline(ctx context.Context, userID string) bool {
	online, err := r.store.IsOnline(ctx, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("IsOnline check failed, treating as offline")
		return false
	}
	return online
}

// OnlineCount returns the number of users currently online.
func (r *Registry) OnlineCount(ctx context.Context) (int, error) {
	return r.store.OnlineCount(ctx)
}

// OnlineUserIDs returns the ids of all users currently online.
func (r *Registry) OnlineUserIDs(ctx context.Context) ([]string, error) {
	return r.store.OnlineUserIDs(ctx)
}

// RunReaper deletes expired bindings every interval until ctx is canceled.
// Expired rows are already invisible to reads; this keeps the table small.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Presence reaper stopped.")
			return
		case <-ticker.C:
			removed, err := r.store.Reap(ctx)
			if err != nil {
				r.logger.Warn().Err(err).Msg("Presence reap failed")
				continue
			}
			if removed > 0 {
				r.logger.Info().Int("removed", removed).Msg("Reaped expired presence entries")
			}
		}
	}
}
