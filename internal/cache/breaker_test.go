package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyCache fails every call while down is set.
type flakyCache struct {
	down  bool
	calls int
	inner *MemoryCache
}

var errBackendDown = errors.New("backend down")

func (f *flakyCache) Set(ctx context.Context, key string, v interface{}, exp time.Duration) error {
	f.calls++
	if f.down {
		return errBackendDown
	}
	return f.inner.Set(ctx, key, v, exp)
}

func (f *flakyCache) Get(ctx context.Context, key string, dest interface{}) error {
	f.calls++
	if f.down {
		return errBackendDown
	}
	return f.inner.Get(ctx, key, dest)
}

func (f *flakyCache) Delete(ctx context.Context, keys ...string) error {
	f.calls++
	return f.inner.Delete(ctx, keys...)
}

func (f *flakyCache) Exists(ctx context.Context, key string) (bool, error) {
	f.calls++
	return f.inner.Exists(ctx, key)
}

func (f *flakyCache) Close() error { return f.inner.Close() }

func TestGuardedCache_OpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCache{down: true, inner: NewMemoryCache()}
	defer flaky.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewGuardedCache(flaky, BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})
	g.now = func() time.Time { return clock }

	var dest string
	for i := 0; i < 3; i++ {
		if err := g.Get(ctx, "k", &dest); !errors.Is(err, errBackendDown) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}
	if g.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", g.State())
	}

	if err := g.Get(ctx, "k", &dest); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if flaky.calls != 3 {
		t.Errorf("backend called while open: %d calls", flaky.calls)
	}
	if g.Rejected() != 1 {
		t.Errorf("rejected = %d", g.Rejected())
	}

	flaky.down = false
	clock = clock.Add(2 * time.Minute)

	if err := g.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("half-open Set: %v", err)
	}
	if g.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED", g.State())
	}
}

func TestGuardedCache_MissIsNotFailure(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	g := NewGuardedCache(mc, BreakerConfig{FailureThreshold: 1})

	var dest string
	for i := 0; i < 3; i++ {
		if err := g.Get(context.Background(), "absent", &dest); !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("expected miss, got %v", err)
		}
	}
	if g.State() != CircuitClosed {
		t.Errorf("misses opened the circuit")
	}
}
