package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Typed is a type-safe façade over any Cache. Every value stored through a
// Typed[T] is serialized from exactly T; a decode failure on read surfaces
// as ErrSerialization, never as a miss, so callers can tell "not cached"
// (safe to recompute) apart from "cached but corrupt" (worth alerting on).
type Typed[T any] struct {
	cache  Cache
	ser    Serializer
	flight singleflight.Group
}

// NewTyped wraps c with serialization for T. Recognized option:
// WithSerializer (defaults to Msgpack).
func NewTyped[T any](c Cache, opts ...Option) *Typed[T] {
	cfg := applyOptions(opts)
	return &Typed[T]{cache: c, ser: cfg.serializer}
}

func (t *Typed[T]) decode(data []byte) (T, error) {
	var value T
	if err := t.ser.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: decoding %s: %v", ErrSerialization, t.ser.Name(), err)
	}
	return value, nil
}

// Get returns the value stored under key, decoded as T.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, error) {
	data, err := t.cache.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.decode(data)
}

// GetMany returns the decoded subset of keys present in the cache. A decode
// failure for any present key fails the whole call with ErrSerialization.
func (t *Typed[T]) GetMany(ctx context.Context, keys []string) (map[string]T, error) {
	raw, err := t.cache.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	result := make(map[string]T, len(raw))
	for key, data := range raw {
		value, err := t.decode(data)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		result[key] = value
	}
	return result, nil
}

// Set encodes value and stores it under key.
func (t *Typed[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := t.ser.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrSerialization, t.ser.Name(), err)
	}
	return t.cache.Set(ctx, key, data, ttl)
}

// SetMany stores every entry of values, stopping at the first error.
func (t *Typed[T]) SetMany(ctx context.Context, values map[string]T, ttl time.Duration) error {
	for key, value := range values {
		if err := t.Set(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

// Delete removes the entry for key.
func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.cache.Delete(ctx, key)
}

// Clear removes every entry in the underlying cache.
func (t *Typed[T]) Clear(ctx context.Context) error {
	return t.cache.Clear(ctx)
}

// Invoker produces a value on a cache miss. The bool return signals whether
// a value exists; return false to report "not found" without caching a zero
// value (e.g. sql.ErrNoRows scenarios).
type Invoker[T any] func(ctx context.Context) (T, bool, error)

type fetchResult[T any] struct {
	value T
	found bool
}

// Fetch is a cache-aside helper. It returns the cached value when present;
// on a miss it calls invoke, stores the result with ttl, and returns it.
// Concurrent Fetch calls for the same key share a single invocation, so a
// cold or expired key does not stampede the backing store. A cache write
// failure after a successful invoke is swallowed — the caller got their
// value. Serialization errors from a corrupt cached value are returned
// as-is; they never trigger invoke.
func (t *Typed[T]) Fetch(ctx context.Context, key string, ttl time.Duration, invoke Invoker[T]) (T, bool, error) {
	value, err := t.Get(ctx, key)
	if err == nil {
		return value, true, nil
	}
	if !IsMiss(err) {
		var zero T
		return zero, false, err
	}

	shared, err, _ := t.flight.Do(key, func() (any, error) {
		value, found, err := invoke(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			return fetchResult[T]{found: false}, nil
		}
		_ = t.Set(ctx, key, value, ttl)
		return fetchResult[T]{value: value, found: true}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	result := shared.(fetchResult[T])
	return result.value, result.found, nil
}
