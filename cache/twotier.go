package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tierFast = "fast"
	tierSlow = "slow"
)

// TwoTier coordinates a fast process-local cache and a slower shared cache
// behind the plain Cache contract.
//
// Reads check the fast tier first; a fast-tier miss falls through to the
// slow tier, and slow-tier hits are promoted back into the fast tier.
// Writes and deletes go to both tiers concurrently and tolerate one tier
// failing; Clear requires both tiers to succeed. A slow tier that errors
// (rather than misses) degrades reads to fast-tier-only semantics instead
// of failing them.
//
// TwoTier holds no mutable state beyond its configuration and counters; it
// is constructed once and shared for the process lifetime.
type TwoTier struct {
	fast    Cache
	slow    Cache
	name    string
	promote bool
	fastTTL time.Duration
	slowTTL time.Duration
	logger  *zap.Logger
	metrics *Metrics

	promotions      atomic.Uint64
	partialFailures atomic.Uint64
	hits            atomic.Uint64
	misses          atomic.Uint64
}

var _ Cache = (*TwoTier)(nil)
var _ StatsProvider = (*TwoTier)(nil)

// NewTwoTier combines a fast and a slow backend. Recognized options:
// WithName, WithPromoteOnGet, WithFastTTL, WithSlowTTL, WithLogger,
// WithMetrics. Panics if either backend is nil.
func NewTwoTier(fast, slow Cache, opts ...Option) *TwoTier {
	if fast == nil || slow == nil {
		panic("cache: NewTwoTier requires both a fast and a slow backend")
	}
	cfg := applyOptions(opts)
	if cfg.name == "" {
		cfg.name = "twotier"
	}
	return &TwoTier{
		fast:    fast,
		slow:    slow,
		name:    cfg.name,
		promote: cfg.promote,
		fastTTL: cfg.fastTTL,
		slowTTL: cfg.slowTTL,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
}

// tierGet wraps a backend read with latency observation.
func (c *TwoTier) tierGet(ctx context.Context, backend Cache, tier, key string) ([]byte, error) {
	start := time.Now()
	value, err := backend.Get(ctx, key)
	c.metrics.observe(c.name, tier, "get", time.Since(start))
	return value, err
}

// promoteValue copies a slow-tier hit into the fast tier. Promotion is
// best-effort: a failure is logged and counted, never returned to the
// caller. It runs synchronously; the added latency is one fast-tier write.
func (c *TwoTier) promoteValue(ctx context.Context, key string, value []byte) {
	err := c.fast.Set(ctx, key, value, c.fastTTL)
	c.metrics.promotion(c.name, err)
	if err != nil {
		c.logger.Warn("failed to promote value into fast tier",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	c.promotions.Add(1)
}

// Get checks the fast tier, then the slow tier, promoting slow-tier hits
// when promotion is enabled. A non-miss slow-tier error degrades to a miss
// unless the fast tier also failed with a non-miss error, which propagates.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, error) {
	value, fastErr := c.tierGet(ctx, c.fast, tierFast, key)
	if fastErr == nil {
		c.hits.Add(1)
		c.metrics.hit(c.name, tierFast)
		return value, nil
	}
	if !IsMiss(fastErr) {
		c.logger.Debug("fast tier read failed, consulting slow tier",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Error(fastErr))
	}

	value, slowErr := c.tierGet(ctx, c.slow, tierSlow, key)
	if slowErr == nil {
		if c.promote {
			c.promoteValue(ctx, key, value)
		}
		c.hits.Add(1)
		c.metrics.hit(c.name, tierSlow)
		return value, nil
	}
	if !IsMiss(slowErr) {
		if !IsMiss(fastErr) {
			return nil, fastErr
		}
		c.logger.Warn("slow tier unavailable, degrading read to miss",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Error(slowErr))
	}
	c.misses.Add(1)
	c.metrics.miss(c.name)
	return nil, ErrMiss
}

// GetMany batches the fast tier first, then the slow tier for whatever is
// still missing. Backend errors are tolerated tier by tier; keys absent
// from both tiers are simply absent from the result.
func (c *TwoTier) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	start := time.Now()
	result, err := c.fast.GetMany(ctx, keys)
	c.metrics.observe(c.name, tierFast, "get_many", time.Since(start))
	if err != nil {
		c.logger.Warn("fast tier batch read failed, consulting slow tier for all keys",
			zap.String("cache", c.name),
			zap.Error(err))
		result = make(map[string][]byte, len(keys))
	}

	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := result[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	start = time.Now()
	slowResult, err := c.slow.GetMany(ctx, missing)
	c.metrics.observe(c.name, tierSlow, "get_many", time.Since(start))
	if err != nil {
		c.logger.Warn("slow tier batch read failed, returning fast tier results only",
			zap.String("cache", c.name),
			zap.Error(err))
		return result, nil
	}
	for key, value := range slowResult {
		if c.promote {
			c.promoteValue(ctx, key, value)
		}
		result[key] = value
	}
	return result, nil
}

// dualWrite issues op against both tiers concurrently and applies the
// at-least-one success rule: a single-tier failure is logged and counted,
// and only a double failure returns an error (the slow tier's, for better
// context).
func (c *TwoTier) dualWrite(operation string, fast, slow func() error) error {
	var wg sync.WaitGroup
	var fastErr, slowErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		fastErr = fast()
	}()
	go func() {
		defer wg.Done()
		slowErr = slow()
	}()
	wg.Wait()

	if fastErr != nil && slowErr != nil {
		return slowErr
	}
	if fastErr != nil || slowErr != nil {
		tier, err := tierFast, fastErr
		if slowErr != nil {
			tier, err = tierSlow, slowErr
		}
		c.partialFailures.Add(1)
		c.metrics.partialFailure(c.name, operation)
		c.logger.Warn("one tier failed during dual write",
			zap.String("cache", c.name),
			zap.String("operation", operation),
			zap.String("tier", tier),
			zap.Error(err))
	}
	return nil
}

// Set writes to both tiers concurrently, substituting the configured
// per-tier default when the caller supplies no TTL. The write succeeds if
// at least one tier accepted it.
func (c *TwoTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fastTTL, slowTTL := ttl, ttl
	if fastTTL <= 0 {
		fastTTL = c.fastTTL
	}
	if slowTTL <= 0 {
		slowTTL = c.slowTTL
	}
	return c.dualWrite("set",
		func() error {
			start := time.Now()
			err := c.fast.Set(ctx, key, value, fastTTL)
			c.metrics.observe(c.name, tierFast, "set", time.Since(start))
			return err
		},
		func() error {
			start := time.Now()
			err := c.slow.Set(ctx, key, value, slowTTL)
			c.metrics.observe(c.name, tierSlow, "set", time.Since(start))
			return err
		},
	)
}

// Delete removes the key from both tiers concurrently; it succeeds if
// either tier succeeded (removing an absent key counts as success).
func (c *TwoTier) Delete(ctx context.Context, key string) error {
	return c.dualWrite("delete",
		func() error {
			start := time.Now()
			err := c.fast.Delete(ctx, key)
			c.metrics.observe(c.name, tierFast, "delete", time.Since(start))
			return err
		},
		func() error {
			start := time.Now()
			err := c.slow.Delete(ctx, key)
			c.metrics.observe(c.name, tierSlow, "delete", time.Since(start))
			return err
		},
	)
}

// Clear empties both tiers concurrently. Unlike Set and Delete, a failure
// on either tier is surfaced so operators learn one tier was not cleared.
func (c *TwoTier) Clear(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.fast.Clear(ctx) })
	g.Go(func() error { return c.slow.Clear(ctx) })
	if err := g.Wait(); err != nil {
		c.logger.Error("failed to clear a cache tier",
			zap.String("cache", c.name),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *TwoTier) Name() string {
	return c.name
}

// Stats aggregates both tiers' counters with the composite's own.
func (c *TwoTier) Stats() Stats {
	stats := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	for _, backend := range []Cache{c.fast, c.slow} {
		if sp, ok := backend.(StatsProvider); ok {
			s := sp.Stats()
			stats.Size += s.Size
			stats.Evictions += s.Evictions
		}
	}
	return stats
}

// Promotions returns the number of values copied from the slow tier into
// the fast tier.
func (c *TwoTier) Promotions() uint64 {
	return c.promotions.Load()
}

// PartialFailures returns the number of dual writes where one tier failed.
func (c *TwoTier) PartialFailures() uint64 {
	return c.partialFailures.Load()
}

// Close shuts down both backends, returning the first error.
func (c *TwoTier) Close() error {
	fastErr := c.fast.Close()
	slowErr := c.slow.Close()
	if fastErr != nil {
		return fastErr
	}
	return slowErr
}
