package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

func init() {
	logx.InitGlobalLogger(false)
}

// memStore is an in-memory Store used to exercise the registry contract.
type memStore struct {
	mu     sync.Mutex
	byUser map[string]entry // user -> binding
	byConn map[string]string
	now    func() time.Time

	failAll bool
}

type entry struct {
	connID    string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		byUser: make(map[string]entry),
		byConn: make(map[string]string),
		now:    time.Now,
	}
}

var errStoreDown = errors.New("store unreachable")

func (m *memStore) Bind(_ context.Context, userID, connID string, expiresAt time.Time) error {
	if m.failAll {
		return errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byUser[userID]; ok {
		delete(m.byConn, old.connID)
	}
	m.byUser[userID] = entry{connID: connID, expiresAt: expiresAt}
	m.byConn[connID] = userID
	return nil
}

func (m *memStore) Unbind(_ context.Context, connID string) (string, error) {
	if m.failAll {
		return "", errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.byConn[connID]
	if !ok {
		return "", nil
	}
	delete(m.byConn, connID)
	delete(m.byUser, userID)
	return userID, nil
}

func (m *memStore) Touch(_ context.Context, connID string, expiresAt time.Time) error {
	if m.failAll {
		return errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID, ok := m.byConn[connID]; ok {
		m.byUser[userID] = entry{connID: connID, expiresAt: expiresAt}
	}
	return nil
}

func (m *memStore) IsOnline(_ context.Context, userID string) (bool, error) {
	if m.failAll {
		return false, errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byUser[userID]
	return ok && e.expiresAt.After(m.now()), nil
}

func (m *memStore) OnlineCount(ctx context.Context) (int, error) {
	ids, err := m.OnlineUserIDs(ctx)
	return len(ids), err
}

func (m *memStore) OnlineUserIDs(_ context.Context) ([]string, error) {
	if m.failAll {
		return nil, errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for userID, e := range m.byUser {
		if e.expiresAt.After(m.now()) {
			ids = append(ids, userID)
		}
	}
	return ids, nil
}

func (m *memStore) Reap(_ context.Context) (int, error) {
	if m.failAll {
		return 0, errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for userID, e := range m.byUser {
		if !e.expiresAt.After(m.now()) {
			delete(m.byConn, e.connID)
			delete(m.byUser, userID)
			removed++
		}
	}
	return removed, nil
}

func TestBindThenUnbind(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg := NewRegistry(store, time.Minute)

	if err := reg.Bind(ctx, "alice", "conn-1"); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}

	if !reg.IsOnline(ctx, "alice") {
		t.Fatal("expected alice online after Bind")
	}

	count, err := reg.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("OnlineCount returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("OnlineCount = %d, want 1", count)
	}

	if got := reg.Unbind(ctx, "conn-1"); got != "alice" {
		t.Fatalf("Unbind returned %q, want alice", got)
	}

	if reg.IsOnline(ctx, "alice") {
		t.Fatal("expected alice offline after Unbind")
	}
}

func TestUnbindUnknownConnectionIsNoOp(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMemStore(), time.Minute)

	if got := reg.Unbind(ctx, "never-bound"); got != "" {
		t.Fatalf("Unbind of unknown connection returned %q, want empty", got)
	}
}

func TestRebindSameUserKeepsSingleEntry(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg := NewRegistry(store, time.Minute)

	if err := reg.Bind(ctx, "alice", "conn-1"); err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	if !reg.IsOnline(ctx, "alice") {
		t.Fatal("alice should be online after first bind")
	}

	// Second device binds without the first ever unbinding.
	if err := reg.Bind(ctx, "alice", "conn-2"); err != nil {
		t.Fatalf("second Bind: %v", err)
	}
	if !reg.IsOnline(ctx, "alice") {
		t.Fatal("alice should remain online across rebind")
	}

	ids, err := reg.OnlineUserIDs(ctx)
	if err != nil {
		t.Fatalf("OnlineUserIDs: %v", err)
	}
	seen := 0
	for _, id := range ids {
		if id == "alice" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("online set contains alice %d times, want exactly once", seen)
	}

	// The stale connection no longer owns the binding.
	if got := reg.Unbind(ctx, "conn-1"); got != "" {
		t.Fatalf("stale Unbind returned %q, want empty", got)
	}
	if !reg.IsOnline(ctx, "alice") {
		t.Fatal("alice should stay online after stale unbind")
	}
}

func TestIsOnlineFailsOpenToOffline(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg := NewRegistry(store, time.Minute)

	if err := reg.Bind(ctx, "alice", "conn-1"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	store.failAll = true

	if reg.IsOnline(ctx, "alice") {
		t.Fatal("IsOnline must report false when the store is unreachable")
	}
}

func TestExpiredEntryIsOffline(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	reg := NewRegistry(store, 50*time.Millisecond)

	if err := reg.Bind(ctx, "alice", "conn-1"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !reg.IsOnline(ctx, "alice") {
		t.Fatal("alice should be online before expiry")
	}

	current = current.Add(time.Second)

	if reg.IsOnline(ctx, "alice") {
		t.Fatal("alice should be offline after TTL expiry")
	}

	// Touch on a live binding pushes expiry forward.
	current = current.Add(-time.Second)
	reg.Touch(ctx, "conn-1")
	current = current.Add(40 * time.Millisecond)
	if !reg.IsOnline(ctx, "alice") {
		t.Fatal("alice should be online after Touch refreshed the TTL")
	}
}
