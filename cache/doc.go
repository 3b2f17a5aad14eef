// Package cache provides a two-tier caching engine: a fast in-memory LRU
// tier coordinated with a slower shared tier (Redis or SQLite) behind one
// uniform byte-oriented interface, with promotion on read, concurrent dual
// writes, and partial-failure tolerance.
//
// # Cache Interface
//
// The [Cache] interface defines the operations every backend implements:
// [Cache.Get], [Cache.GetMany], [Cache.Set], [Cache.Delete], [Cache.Clear],
// [Cache.Name], and [Cache.Close]. [TwoTier] implements the same interface,
// so composites can nest and application code never needs to know which
// tier served a read.
//
// Values are raw []byte. Type safety is layered on top by [Typed], which
// binds a serializer to a value type — the engine itself is
// serialization-format-agnostic.
//
// # Backends
//
//   - [NewMemory] — in-process LRU with per-entry TTL and an optional idle
//     window. Capacity-bounded; the least recently used entry is evicted
//     first, which keeps eviction deterministic. Expired entries are
//     removed lazily on read and by a background goroutine. Lost on
//     process restart.
//
//   - [NewRedis] — backed by Redis using [github.com/redis/go-redis/v9].
//     Expiry uses native Redis TTLs. An optional key prefix ([WithPrefix])
//     namespaces keys so unrelated applications can share one instance;
//     [Cache.Clear] only touches keys under the prefix. Every operation
//     carries a per-query timeout ([DefaultQueryTimeout]).
//
//   - [NewSQLite] — backed by a SQLite database using [modernc.org/sqlite]
//     (pure Go, no CGO). A file-backed database survives restarts, making
//     it a slow-tier option for single-node deployments without a Redis
//     server.
//
//   - [NewBreaker] — wraps a backend with a circuit breaker so a down slow
//     tier fails fast instead of making every request wait out a network
//     timeout.
//
// # Two-Tier Orchestration
//
// [NewTwoTier] combines a fast and a slow backend:
//
//	c := cache.NewTwoTier(
//	    cache.NewMemory(ctx, cache.WithCapacity(1000)),
//	    cache.NewRedis(redisClient, cache.WithPrefix("myapp")),
//	)
//
// Reads check the fast tier first. On a miss the slow tier is consulted,
// and a hit there is promoted — copied into the fast tier with the
// configured fast TTL — so subsequent reads stay local. Promotion is
// best-effort: a failed promotion is logged and counted, never surfaced.
//
// Writes and deletes go to both tiers concurrently and succeed when at
// least one tier succeeds; a cache is best-effort infrastructure, and
// losing one tier's copy should not block the caller whose source of truth
// lies elsewhere. Clear is the exception: it is a destructive, intentional
// operation, so a failure on either tier is surfaced.
//
// A slow tier that errors (rather than misses) degrades reads to
// fast-tier-only semantics: the caller sees a miss, not the connectivity
// error. The two tiers may transiently disagree after concurrent writes —
// last-write-wins per tier is the accepted consistency model; no
// cross-tier lock is taken.
//
// # Typed Access
//
// [Typed] wraps any [Cache] with serialization for one value type:
//
//	users := cache.NewTyped[User](c)
//	err := users.Set(ctx, "user:123", user, time.Minute)
//	user, err := users.Get(ctx, "user:123")
//
// The default encoding is msgpack ([github.com/vmihailenco/msgpack/v5]);
// [WithSerializer] selects JSON instead. [Typed.Fetch] is a cache-aside
// helper with singleflight stampede suppression: concurrent fetches of a
// cold key share one invocation of the loader.
//
// # Errors
//
// [ErrMiss] marks an absent or expired key and is checked with [IsMiss];
// it is an expected outcome, not a failure. [ErrSerialization] marks a
// typed encode/decode failure and is never folded into a miss — a corrupt
// cached value should alert, not silently recompute. [BackendError] wraps
// I/O failures from a networked backend.
//
// # Construction
//
// [New] builds a TwoTier cache from a [Config]: it probes the configured
// Redis endpoint and falls back to a second in-memory tier when the store
// is absent or unreachable. [NewMemoryOnly] skips the probe entirely —
// useful in development and tests, where the full promotion and dual-write
// logic still runs without any external dependency. [LoadConfig] reads the
// configuration from YAML; duration fields accept strings like "90s",
// "5m", or "1d".
//
// # Metrics
//
// [NewMetrics] registers Prometheus collectors for per-tier hits, misses,
// promotions, dual-write partial failures, and backend operation latency.
// Attach with [WithMetrics]; a cache without metrics records nothing.
package cache
