package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cache is the uniform byte-oriented contract implemented by every backend:
// the in-memory fast tier, the Redis and SQLite slow tiers, and the TwoTier
// composite itself, so composites can nest.
type Cache interface {
	// Get returns the value stored under key, or an error satisfying
	// IsMiss if the key is absent or expired. Expired entries behave
	// exactly like absent ones.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetMany returns the subset of keys present in the cache. Keys not
	// found are simply absent from the result map; partial misses are
	// never an error by themselves.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value under key. If ttl <= 0 the backend's configured
	// default TTL applies; a backend with no default keeps the entry
	// until it is deleted or evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this backend.
	Clear(ctx context.Context) error

	// Name is a stable identifier used in logs and metrics.
	Name() string

	// Close releases backend resources.
	Close() error
}

// Stats is a point-in-time snapshot of a backend's counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// StatsProvider is implemented by backends that track usage counters.
type StatsProvider interface {
	Stats() Stats
}

// DefaultQueryTimeout is the per-operation timeout for backends that
// perform I/O (Redis, SQLite). Prevents indefinite hangs on slow or
// unresponsive storage.
const DefaultQueryTimeout = 5 * time.Second

// DefaultExpiryCheck is the interval for background expired entry cleanup
// in the in-memory and SQLite backends.
const DefaultExpiryCheck = time.Minute

// config holds the resolved configuration for a cache implementation.
// Each option documents which implementations read it.
type config struct {
	name         string
	defaultTTL   time.Duration
	idleTTL      time.Duration
	capacity     int
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
	promote      bool
	fastTTL      time.Duration
	slowTTL      time.Duration
	logger       *zap.Logger
	metrics      *Metrics
	serializer   Serializer
}

// Option configures a cache implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  DefaultExpiryCheck,
		promote:      true,
		logger:       zap.NewNop(),
		serializer:   Msgpack,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.expiryCheck <= 0 {
		cfg.expiryCheck = DefaultExpiryCheck
	}
	return cfg
}

// WithName sets the identifier reported by Name. Applies to all
// implementations.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
// Zero means entries never expire by time. Applies to all backends.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithIdleTTL evicts entries that have not been read for d, independent of
// their TTL. Zero disables idle eviction. Applies to the in-memory backend.
func WithIdleTTL(d time.Duration) Option {
	return func(c *config) { c.idleTTL = d }
}

// WithCapacity bounds the in-memory backend to n entries; once exceeded the
// least recently used entry is evicted. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed caches
// (Redis, SQLite). Defaults to DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup.
// Non-positive values fall back to DefaultExpiryCheck. Applies to the
// in-memory and SQLite backends.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix namespaces keys so unrelated applications can share one Redis
// instance. Applies to the Redis backend.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithPromoteOnGet enables or disables copying slow-tier hits into the fast
// tier. Applies to TwoTier. Enabled by default.
func WithPromoteOnGet(enabled bool) Option {
	return func(c *config) { c.promote = enabled }
}

// WithFastTTL sets the TTL TwoTier passes to the fast tier when the caller
// supplies none, including promotion writes.
func WithFastTTL(d time.Duration) Option {
	return func(c *config) { c.fastTTL = d }
}

// WithSlowTTL sets the TTL TwoTier passes to the slow tier when the caller
// supplies none.
func WithSlowTTL(d time.Duration) Option {
	return func(c *config) { c.slowTTL = d }
}

// WithLogger sets the logger used for partial-failure and degradation
// events. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches metric counters to TwoTier. Nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithSerializer sets the encoding used by Typed. Defaults to Msgpack.
func WithSerializer(s Serializer) Option {
	return func(c *config) {
		if s != nil {
			c.serializer = s
		}
	}
}
