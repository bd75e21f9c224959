package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting requests
	CircuitHalfOpen CircuitState = "HALF_OPEN" // Testing if backend recovered
)

// ErrCircuitOpen is returned when the backend is skipped after repeated failures.
var ErrCircuitOpen = errors.New("cache circuit breaker is open")

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the number of successes in half-open state to close.
	SuccessThreshold int
	// Timeout is how long to wait before transitioning from open to half-open.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// GuardedCache wraps a remote cache with a circuit breaker. Once the backend
// fails FailureThreshold times in a row every call returns ErrCircuitOpen
// until Timeout elapses, so callers fall through to detection immediately.
// Cache misses are not failures.
type GuardedCache struct {
	inner  Cache
	config BreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	rejected        int64
}

var _ Cache = (*GuardedCache)(nil)

// NewGuardedCache wraps inner with a circuit breaker.
func NewGuardedCache(inner Cache, config BreakerConfig) *GuardedCache {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &GuardedCache{
		inner:  inner,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

func (g *GuardedCache) execute(fn func() error) error {
	if err := g.allowRequest(); err != nil {
		return err
	}
	err := fn()
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		g.recordFailure()
		return err
	}
	g.recordSuccess()
	return err
}

func (g *GuardedCache) allowRequest() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == CircuitOpen {
		if g.now().Sub(g.lastFailureTime) > g.config.Timeout {
			g.transitionTo(CircuitHalfOpen)
			return nil
		}
		g.rejected++
		return ErrCircuitOpen
	}
	return nil
}

func (g *GuardedCache) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case CircuitHalfOpen:
		g.successes++
		if g.successes >= g.config.SuccessThreshold {
			g.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		g.failures = 0
	}
}

func (g *GuardedCache) recordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastFailureTime = g.now()

	switch g.state {
	case CircuitClosed:
		g.failures++
		if g.failures >= g.config.FailureThreshold {
			g.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		g.transitionTo(CircuitOpen)
	}
}

func (g *GuardedCache) transitionTo(state CircuitState) {
	g.state = state
	g.failures = 0
	g.successes = 0
}

// State returns the current circuit state.
func (g *GuardedCache) State() CircuitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Rejected returns how many calls were skipped while the circuit was open.
func (g *GuardedCache) Rejected() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rejected
}

// Set implements Cache.
func (g *GuardedCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return g.execute(func() error { return g.inner.Set(ctx, key, value, expiration) })
}

// Get implements Cache.
func (g *GuardedCache) Get(ctx context.Context, key string, dest interface{}) error {
	return g.execute(func() error { return g.inner.Get(ctx, key, dest) })
}

// Delete implements Cache.
func (g *GuardedCache) Delete(ctx context.Context, keys ...string) error {
	return g.execute(func() error { return g.inner.Delete(ctx, keys...) })
}

// Exists implements Cache.
func (g *GuardedCache) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := g.execute(func() error {
		var err error
		ok, err = g.inner.Exists(ctx, key)
		return err
	})
	return ok, err
}

// Close closes the wrapped cache.
func (g *GuardedCache) Close() error {
	return g.inner.Close()
}
