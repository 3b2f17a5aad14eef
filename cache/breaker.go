package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// BreakerState is the state of a tier circuit breaker.
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	case BreakerOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig tunes the circuit breaker guarding a slow tier.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive backend failures before the
	// circuit opens.
	MaxFailures int

	// ResetTimeout is how long an open circuit waits before allowing a
	// half-open probe request.
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// needed to close the circuit again.
	SuccessThreshold int
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 3,
	}
}

// breakerCache guards a backend with a circuit breaker so a down slow tier
// fails fast instead of making every request wait out a network timeout.
// While open, operations return a *BackendError wrapping ErrTierUnavailable,
// which TwoTier's read path degrades to a miss. Half-open admits one probe
// request at a time; everything else keeps failing fast until the probe
// outcome is known. Misses are normal outcomes and never count as failures.
type breakerCache struct {
	inner Cache
	cfg   BreakerConfig

	state       atomic.Int32
	failures    atomic.Int32
	successes   atomic.Int32
	probing     atomic.Bool
	lastFailure atomic.Int64 // unix nanos
}

var _ Cache = (*breakerCache)(nil)

// NewBreaker wraps inner with circuit breaker protection.
func NewBreaker(inner Cache, cfg BreakerConfig) Cache {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	return &breakerCache{inner: inner, cfg: cfg}
}

// State returns the current breaker state.
func (b *breakerCache) State() BreakerState {
	return BreakerState(b.state.Load())
}

func (b *breakerCache) allow() error {
	switch BreakerState(b.state.Load()) {
	case BreakerClosed:
		return nil
	case BreakerHalfOpen:
		if !b.probing.CompareAndSwap(false, true) {
			return backendErr(b.inner.Name(), ErrTierUnavailable)
		}
		return nil
	case BreakerOpen:
		elapsed := time.Since(time.Unix(0, b.lastFailure.Load()))
		if elapsed >= b.cfg.ResetTimeout && b.state.CompareAndSwap(int32(BreakerOpen), int32(BreakerHalfOpen)) {
			b.successes.Store(0)
			b.probing.Store(true)
			return nil
		}
		return backendErr(b.inner.Name(), ErrTierUnavailable)
	default:
		return backendErr(b.inner.Name(), ErrInternal)
	}
}

// record tallies the outcome of a backend call. Only backend failures move
// the breaker; misses and serialization errors pass through untouched.
func (b *breakerCache) record(err error) {
	defer b.probing.Store(false)
	if err != nil && !IsMiss(err) {
		b.lastFailure.Store(time.Now().UnixNano())
		b.successes.Store(0)
		if b.failures.Add(1) >= int32(b.cfg.MaxFailures) || b.State() == BreakerHalfOpen {
			b.state.Store(int32(BreakerOpen))
		}
		return
	}
	b.failures.Store(0)
	if b.State() == BreakerHalfOpen && b.successes.Add(1) >= int32(b.cfg.SuccessThreshold) {
		b.state.Store(int32(BreakerClosed))
	}
}

func (b *breakerCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	value, err := b.inner.Get(ctx, key)
	b.record(err)
	return value, err
}

func (b *breakerCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	result, err := b.inner.GetMany(ctx, keys)
	b.record(err)
	return result, err
}

func (b *breakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.inner.Set(ctx, key, value, ttl)
	b.record(err)
	return err
}

func (b *breakerCache) Delete(ctx context.Context, key string) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.inner.Delete(ctx, key)
	b.record(err)
	return err
}

func (b *breakerCache) Clear(ctx context.Context) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.inner.Clear(ctx)
	b.record(err)
	return err
}

func (b *breakerCache) Name() string {
	return b.inner.Name()
}

func (b *breakerCache) Close() error {
	return b.inner.Close()
}
