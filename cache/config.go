package cache

import (
	"fmt"
	"os"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Default tier tuning used when configuration leaves fields empty. The
// slow-tier TTL is deliberately longer: it covers the window between
// fast-tier evictions.
const (
	DefaultFastCapacity = 1000
	DefaultFastTTL      = 5 * time.Minute
	DefaultSlowTTL      = time.Hour

	// Memory-only fallback tiers (no shared store to lean on).
	fallbackSlowCapacity = 10000
)

// Config is the construction-time configuration surface for a two-tier
// cache. Duration fields are strings like "90s", "5m" or "1d".
type Config struct {
	// Name identifies the cache in logs and metrics.
	Name string `yaml:"name"`

	// Namespace prefixes every slow-tier key so unrelated applications can
	// share one Redis instance.
	Namespace string `yaml:"namespace"`

	// PromoteOnGet controls copying slow-tier hits into the fast tier.
	// Defaults to true when unset.
	PromoteOnGet *bool `yaml:"promote_on_get"`

	Fast FastConfig `yaml:"fast"`
	Slow SlowConfig `yaml:"slow"`
}

// FastConfig tunes the in-memory tier.
type FastConfig struct {
	// Capacity is the max item count before LRU eviction.
	Capacity int `yaml:"capacity"`

	// TTL is the default expiry for entries written without one.
	TTL string `yaml:"ttl"`

	// IdleTTL evicts entries unread for this long, independent of TTL.
	IdleTTL string `yaml:"idle_ttl"`

	// ExpiryCheck is the background cleanup interval.
	ExpiryCheck string `yaml:"expiry_check"`
}

// SlowConfig tunes the shared tier.
type SlowConfig struct {
	// Provider selects the slow backend: "redis" (default when Addr is
	// set), "sqlite", or "memory".
	Provider string `yaml:"provider"`

	// Addr is the Redis endpoint. Empty or unreachable triggers the
	// memory-only fallback.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`

	// Path is the SQLite database file for the "sqlite" provider.
	Path string `yaml:"path"`

	DialTimeout  string `yaml:"dial_timeout"`
	QueryTimeout string `yaml:"query_timeout"`

	// TTL is the default expiry for entries written without one.
	TTL string `yaml:"ttl"`

	Breaker BreakerSettings `yaml:"breaker"`
}

// BreakerSettings configures the optional circuit breaker around the slow
// tier.
type BreakerSettings struct {
	Enabled          bool   `yaml:"enabled"`
	MaxFailures      int    `yaml:"max_failures"`
	ResetTimeout     string `yaml:"reset_timeout"`
	SuccessThreshold int    `yaml:"success_threshold"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cache: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("cache: parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks fields that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.Slow.Provider {
	case "", "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("cache: unknown slow tier provider %q", c.Slow.Provider)
	}
	if c.Fast.Capacity < 0 {
		return fmt.Errorf("cache: negative fast tier capacity %d", c.Fast.Capacity)
	}
	for field, value := range map[string]string{
		"fast.ttl":             c.Fast.TTL,
		"fast.idle_ttl":        c.Fast.IdleTTL,
		"fast.expiry_check":    c.Fast.ExpiryCheck,
		"slow.ttl":             c.Slow.TTL,
		"slow.dial_timeout":    c.Slow.DialTimeout,
		"slow.query_timeout":   c.Slow.QueryTimeout,
		"slow.breaker.timeout": c.Slow.Breaker.ResetTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := str2duration.ParseDuration(value); err != nil {
			return fmt.Errorf("cache: invalid duration for %s: %w", field, err)
		}
	}
	return nil
}

// promoteOnGet resolves the tri-state flag, defaulting to enabled.
func (c *Config) promoteOnGet() bool {
	if c.PromoteOnGet == nil {
		return true
	}
	return *c.PromoteOnGet
}

// duration parses a duration string, returning def when s is empty or
// malformed. Validate reports malformed values to the operator; here the
// default keeps construction going.
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func (c *BreakerSettings) breakerConfig() BreakerConfig {
	cfg := DefaultBreakerConfig()
	if c.MaxFailures > 0 {
		cfg.MaxFailures = c.MaxFailures
	}
	if c.SuccessThreshold > 0 {
		cfg.SuccessThreshold = c.SuccessThreshold
	}
	cfg.ResetTimeout = duration(c.ResetTimeout, cfg.ResetTimeout)
	return cfg
}
