package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
	cfg    config
	owns   bool
}

var _ Cache = (*redisCache)(nil)

// NewRedis returns a Cache backed by Redis. The caller owns the
// redis.Client lifecycle — Close is a no-op on the client. Keys are
// namespaced with WithPrefix; expiry uses native Redis TTLs.
func NewRedis(client *redis.Client, opts ...Option) Cache {
	return newRedis(client, false, opts...)
}

func newRedis(client *redis.Client, owns bool, opts ...Option) Cache {
	cfg := applyOptions(opts)
	if cfg.name == "" {
		cfg.name = "redis"
	}
	return &redisCache{client: client, cfg: cfg, owns: owns}
}

// Available reports whether a Redis server at addr answers a ping within
// timeout. Used by the factory to decide between a real slow tier and the
// memory-only fallback.
func Available(ctx context.Context, addr string, timeout time.Duration) bool {
	if addr == "" {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: timeout})
	defer client.Close()
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(pctx).Err() == nil
}

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *redisCache) prefixKey(key string) string {
	if c.cfg.prefix == "" {
		return key
	}
	return c.cfg.prefix + ":" + key
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	data, err := c.client.Get(qctx, c.prefixKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, backendErr(c.cfg.name, err)
	}
	return data, nil
}

func (c *redisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefixKey(key)
	}
	values, err := c.client.MGet(qctx, prefixed...).Result()
	if err != nil {
		return nil, backendErr(c.cfg.name, err)
	}
	result := make(map[string][]byte, len(keys))
	for i, val := range values {
		if val == nil {
			continue
		}
		// MGET returns strings for present keys.
		if s, ok := val.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.client.Set(qctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		return backendErr(c.cfg.name, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.client.Del(qctx, c.prefixKey(key)).Err(); err != nil {
		return backendErr(c.cfg.name, err)
	}
	return nil
}

// Clear removes every key under this cache's namespace using SCAN so
// unrelated data sharing the Redis instance is untouched.
func (c *redisCache) Clear(ctx context.Context) error {
	pattern := "*"
	if c.cfg.prefix != "" {
		pattern = c.cfg.prefix + ":*"
	}
	var cursor uint64
	for {
		qctx, cancel := c.queryCtx(ctx)
		keys, next, err := c.client.Scan(qctx, cursor, pattern, 512).Result()
		if err != nil {
			cancel()
			return backendErr(c.cfg.name, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(qctx, keys...).Err(); err != nil {
				cancel()
				return backendErr(c.cfg.name, err)
			}
		}
		cancel()
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *redisCache) Name() string {
	return c.cfg.name
}

// Close closes the client only when this backend created it (factory
// construction). Caller-supplied clients are left open.
func (c *redisCache) Close() error {
	if c.owns {
		return c.client.Close()
	}
	return nil
}
