package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New builds a TwoTier cache from configuration: an in-memory fast tier and
// a slow tier chosen by cfg.Slow. A Redis slow tier is probed during
// construction; an empty or unreachable endpoint falls back to a second
// in-memory tier so the full promotion and dual-write logic keeps working
// in environments without a distributed store. A nil logger disables
// logging.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*TwoTier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fast := newFastTier(ctx, cfg)
	slow, err := newSlowTier(ctx, cfg, logger)
	if err != nil {
		fast.Close()
		return nil, err
	}

	if cfg.Slow.Breaker.Enabled {
		slow = NewBreaker(slow, cfg.Slow.Breaker.breakerConfig())
	}

	combined := []Option{
		WithName(cfg.Name),
		WithPromoteOnGet(cfg.promoteOnGet()),
		WithFastTTL(duration(cfg.Fast.TTL, DefaultFastTTL)),
		WithSlowTTL(duration(cfg.Slow.TTL, DefaultSlowTTL)),
		WithLogger(logger),
	}
	combined = append(combined, opts...)
	return NewTwoTier(fast, slow, combined...), nil
}

// NewMemoryOnly builds a TwoTier cache from two independent in-memory
// backends: a small, short-lived fast tier and a larger, longer-lived tier
// standing in for the shared store. Intended for development and tests —
// it exercises the full orchestration logic without any external
// dependency.
func NewMemoryOnly(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*TwoTier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fast := newFastTier(ctx, cfg)
	slow := NewMemory(ctx,
		WithName(cfg.Name+"_slow"),
		WithCapacity(fallbackSlowCapacity),
		WithDefaultTTL(duration(cfg.Slow.TTL, DefaultSlowTTL)),
		WithExpiryCheck(duration(cfg.Fast.ExpiryCheck, DefaultExpiryCheck)),
	)
	combined := []Option{
		WithName(cfg.Name),
		WithPromoteOnGet(cfg.promoteOnGet()),
		WithFastTTL(duration(cfg.Fast.TTL, DefaultFastTTL)),
		WithSlowTTL(duration(cfg.Slow.TTL, DefaultSlowTTL)),
		WithLogger(logger),
	}
	combined = append(combined, opts...)
	return NewTwoTier(fast, slow, combined...), nil
}

func newFastTier(ctx context.Context, cfg Config) Cache {
	capacity := cfg.Fast.Capacity
	if capacity == 0 {
		capacity = DefaultFastCapacity
	}
	return NewMemory(ctx,
		WithName(cfg.Name+"_fast"),
		WithCapacity(capacity),
		WithDefaultTTL(duration(cfg.Fast.TTL, DefaultFastTTL)),
		WithIdleTTL(duration(cfg.Fast.IdleTTL, 0)),
		WithExpiryCheck(duration(cfg.Fast.ExpiryCheck, DefaultExpiryCheck)),
	)
}

func newSlowTier(ctx context.Context, cfg Config, logger *zap.Logger) (Cache, error) {
	provider := cfg.Slow.Provider
	if provider == "" {
		if cfg.Slow.Addr != "" {
			provider = "redis"
		} else {
			provider = "memory"
		}
	}

	switch provider {
	case "redis":
		dialTimeout := duration(cfg.Slow.DialTimeout, DefaultQueryTimeout)
		if cfg.Slow.Addr == "" || !Available(ctx, cfg.Slow.Addr, dialTimeout) {
			logger.Warn("slow tier unreachable, falling back to memory-only cache",
				zap.String("cache", cfg.Name),
				zap.String("addr", cfg.Slow.Addr))
			return newFallbackTier(ctx, cfg), nil
		}
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Slow.Addr,
			Password:    cfg.Slow.Password,
			DB:          cfg.Slow.DB,
			PoolSize:    cfg.Slow.PoolSize,
			DialTimeout: dialTimeout,
		})
		return newRedis(client, true,
			WithName(cfg.Name+"_slow"),
			WithPrefix(cfg.Namespace),
			WithDefaultTTL(duration(cfg.Slow.TTL, DefaultSlowTTL)),
			WithQueryTimeout(duration(cfg.Slow.QueryTimeout, DefaultQueryTimeout)),
		), nil

	case "sqlite":
		return NewSQLite(ctx, cfg.Slow.Path,
			WithName(cfg.Name+"_slow"),
			WithDefaultTTL(duration(cfg.Slow.TTL, DefaultSlowTTL)),
			WithQueryTimeout(duration(cfg.Slow.QueryTimeout, DefaultQueryTimeout)),
			WithExpiryCheck(duration(cfg.Fast.ExpiryCheck, DefaultExpiryCheck)),
		)

	default: // "memory"
		return newFallbackTier(ctx, cfg), nil
	}
}

func newFallbackTier(ctx context.Context, cfg Config) Cache {
	return NewMemory(ctx,
		WithName(cfg.Name+"_slow"),
		WithCapacity(fallbackSlowCapacity),
		WithDefaultTTL(duration(cfg.Slow.TTL, DefaultSlowTTL)),
		WithExpiryCheck(duration(cfg.Fast.ExpiryCheck, DefaultExpiryCheck)),
	)
}
