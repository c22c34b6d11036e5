package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

func init() {
	logx.InitGlobalLogger(false)
}

// memCounterStore mimics the shared counter table, including window expiry.
type memCounterStore struct {
	mu  sync.Mutex
	now func() time.Time

	counts  map[string]int
	expires map[string]time.Time
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{
		now:     time.Now,
		counts:  make(map[string]int),
		expires: make(map[string]time.Time),
	}
}

func (m *memCounterStore) Increment(_ context.Context, username string, expiresAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.expires[username]; !ok || !expiry.After(m.now()) {
		m.counts[username] = 0
	}
	m.counts[username]++
	m.expires[username] = expiresAt
	return m.counts[username], nil
}

func (m *memCounterStore) Reset(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.counts, username)
	delete(m.expires, username)
	return nil
}

// countingFreezer records how often each username was frozen.
type countingFreezer struct {
	frozen map[string]int
}

func newCountingFreezer() *countingFreezer {
	return &countingFreezer{frozen: make(map[string]int)}
}

func (f *countingFreezer) Freeze(_ context.Context, username string) error {
	f.frozen[username]++
	return nil
}

func TestThirdFailureFreezesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	freezer := newCountingFreezer()
	throttle := New(newMemCounterStore(), freezer, 3, 24*time.Hour)

	// First two failures warn with a remaining count.
	for i, wantRemaining := range []int{2, 1} {
		result, err := throttle.Fail(ctx, "alice")
		if err != nil {
			t.Fatalf("Fail #%d: %v", i+1, err)
		}
		if result.Locked {
			t.Fatalf("Fail #%d: locked too early", i+1)
		}
		if result.Remaining != wantRemaining {
			t.Fatalf("Fail #%d: remaining = %d, want %d", i+1, result.Remaining, wantRemaining)
		}
	}

	// Third failure crosses the threshold and freezes.
	result, err := throttle.Fail(ctx, "alice")
	if err != nil {
		t.Fatalf("Fail #3: %v", err)
	}
	if !result.Locked || !result.JustLocked {
		t.Fatalf("Fail #3: result = %+v, want locked at the transition", result)
	}
	if freezer.frozen["alice"] != 1 {
		t.Fatalf("freeze fired %d times, want 1", freezer.frozen["alice"])
	}

	// A fourth failure stays locked but must not freeze again.
	result, err = throttle.Fail(ctx, "alice")
	if err != nil {
		t.Fatalf("Fail #4: %v", err)
	}
	if !result.Locked || result.JustLocked {
		t.Fatalf("Fail #4: result = %+v, want locked without re-firing", result)
	}
	if freezer.frozen["alice"] != 1 {
		t.Fatalf("freeze fired %d times after fourth failure, want still 1", freezer.frozen["alice"])
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	freezer := newCountingFreezer()
	throttle := New(newMemCounterStore(), freezer, 3, 24*time.Hour)

	// Two failures, then a successful login before the third.
	if _, err := throttle.Fail(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := throttle.Fail(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := throttle.Success(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	// The next failure starts back at count 1.
	result, err := throttle.Fail(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 || result.Locked {
		t.Fatalf("post-reset failure result = %+v, want count 1, unlocked", result)
	}
	if freezer.frozen["alice"] != 0 {
		t.Fatal("freeze must not fire before the threshold")
	}
}

func TestExpiredCounterRestartsAtOne(t *testing.T) {
	ctx := context.Background()
	store := newMemCounterStore()

	current := time.Now()
	store.now = func() time.Time { return current }

	throttle := New(store, newCountingFreezer(), 3, time.Hour)

	if _, err := throttle.Fail(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := throttle.Fail(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	// Let the counter window lapse untouched.
	current = current.Add(2 * time.Hour)

	result, err := throttle.Fail(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 {
		t.Fatalf("count after expiry = %d, want 1", result.Count)
	}
}

func TestCountersAreIndependentPerUsername(t *testing.T) {
	ctx := context.Background()
	freezer := newCountingFreezer()
	throttle := New(newMemCounterStore(), freezer, 3, 24*time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := throttle.Fail(ctx, "alice"); err != nil {
			t.Fatal(err)
		}
	}

	result, err := throttle.Fail(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 || result.Locked {
		t.Fatalf("bob's first failure = %+v, want count 1, unlocked", result)
	}
	if freezer.frozen["bob"] != 0 {
		t.Fatal("bob must not be frozen")
	}
}
