package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	ID    int64  `msgpack:"id" json:"id"`
	Name  string `msgpack:"name" json:"name"`
	Email string `msgpack:"email" json:"email"`
}

func newTypedMemory[T any](t *testing.T, opts ...Option) *Typed[T] {
	t.Helper()
	c := NewMemory(context.Background())
	t.Cleanup(func() { c.Close() })
	return NewTyped[T](c, opts...)
}

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	user := testUser{ID: 7, Name: "ada", Email: "ada@example.com"}
	require.NoError(t, tc.Set(ctx, "user:7", user, time.Minute))

	got, err := tc.Get(ctx, "user:7")
	assert.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestTypedMiss(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	_, err := tc.Get(ctx, "missing")
	assert.True(t, IsMiss(err))
	assert.False(t, IsSerialization(err))
}

func TestTypedDecodeMismatch(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(context.Background())
	defer c.Close()

	// Store a string payload, then read the same key expecting a struct.
	writer := NewTyped[string](c)
	require.NoError(t, writer.Set(ctx, "key", "not a user", time.Minute))

	reader := NewTyped[testUser](c)
	_, err := reader.Get(ctx, "key")
	require.Error(t, err)
	assert.True(t, IsSerialization(err))
	assert.False(t, IsMiss(err))
}

func TestTypedGetMany(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	require.NoError(t, tc.SetMany(ctx, map[string]testUser{
		"user:1": {ID: 1, Name: "a"},
		"user:2": {ID: 2, Name: "b"},
	}, time.Minute))

	result, err := tc.GetMany(ctx, []string{"user:1", "user:2", "user:3"})
	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, int64(1), result["user:1"].ID)
	assert.Equal(t, "b", result["user:2"].Name)
}

func TestTypedGetManyDecodeFailure(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(context.Background())
	defer c.Close()

	writer := NewTyped[string](c)
	require.NoError(t, writer.Set(ctx, "bad", "oops", time.Minute))

	reader := NewTyped[testUser](c)
	_, err := reader.GetMany(ctx, []string{"bad"})
	require.Error(t, err)
	assert.True(t, IsSerialization(err))
}

func TestTypedDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	require.NoError(t, tc.Set(ctx, "key", testUser{ID: 1}, time.Minute))
	require.NoError(t, tc.Delete(ctx, "key"))
	_, err := tc.Get(ctx, "key")
	assert.True(t, IsMiss(err))

	require.NoError(t, tc.Set(ctx, "key", testUser{ID: 1}, time.Minute))
	require.NoError(t, tc.Clear(ctx))
	_, err = tc.Get(ctx, "key")
	assert.True(t, IsMiss(err))
}

func TestTypedJSONSerializer(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(context.Background())
	defer c.Close()

	tc := NewTyped[testUser](c, WithSerializer(JSON))
	user := testUser{ID: 42, Name: "grace", Email: "grace@example.com"}
	require.NoError(t, tc.Set(ctx, "user:42", user, time.Minute))

	got, err := tc.Get(ctx, "user:42")
	assert.NoError(t, err)
	assert.Equal(t, user, got)

	// The stored payload is plain JSON.
	raw, err := c.Get(ctx, "user:42")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"grace"`)
}

func TestTypedOverTwoTier(t *testing.T) {
	ctx := context.Background()
	fast := NewMemory(ctx, WithName("fast"))
	slow := NewMemory(ctx, WithName("slow"))
	c := NewTwoTier(fast, slow, WithFastTTL(time.Minute))
	defer c.Close()

	tc := NewTyped[testUser](c)
	user := testUser{ID: 9, Name: "lin"}
	require.NoError(t, tc.Set(ctx, "user:9", user, time.Minute))

	// Drop the fast copy so the read exercises the slow tier and promotion.
	require.NoError(t, fast.Delete(ctx, "user:9"))

	got, err := tc.Get(ctx, "user:9")
	assert.NoError(t, err)
	assert.Equal(t, user, got)
	assert.Equal(t, uint64(1), c.Promotions())
}

func TestFetchHitSkipsInvoke(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	user := testUser{ID: 1, Name: "cached"}
	require.NoError(t, tc.Set(ctx, "user:1", user, time.Minute))

	got, found, err := tc.Fetch(ctx, "user:1", time.Minute, func(context.Context) (testUser, bool, error) {
		t.Fatal("invoker must not run on a cache hit")
		return testUser{}, false, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, user, got)
}

func TestFetchMissInvokesAndCaches(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	user := testUser{ID: 2, Name: "fresh"}
	got, found, err := tc.Fetch(ctx, "user:2", time.Minute, func(context.Context) (testUser, bool, error) {
		return user, true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, user, got)

	// The invoked value was cached.
	cached, err := tc.Get(ctx, "user:2")
	assert.NoError(t, err)
	assert.Equal(t, user, cached)
}

func TestFetchNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	var calls atomic.Int64
	invoke := func(context.Context) (testUser, bool, error) {
		calls.Add(1)
		return testUser{}, false, nil
	}

	_, found, err := tc.Fetch(ctx, "user:404", time.Minute, invoke)
	assert.NoError(t, err)
	assert.False(t, found)

	// Nothing was cached, so the next fetch invokes again.
	_, found, err = tc.Fetch(ctx, "user:404", time.Minute, invoke)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(2), calls.Load())
}

func TestFetchPropagatesInvokerError(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	wantErr := errors.New("upstream down")
	_, found, err := tc.Fetch(ctx, "user:1", time.Minute, func(context.Context) (testUser, bool, error) {
		return testUser{}, false, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, found)
}

func TestFetchSerializationErrorSkipsInvoke(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(context.Background())
	defer c.Close()

	writer := NewTyped[string](c)
	require.NoError(t, writer.Set(ctx, "key", "corrupt", time.Minute))

	reader := NewTyped[testUser](c)
	_, _, err := reader.Fetch(ctx, "key", time.Minute, func(context.Context) (testUser, bool, error) {
		t.Fatal("invoker must not run when the cached value is corrupt")
		return testUser{}, false, nil
	})
	assert.True(t, IsSerialization(err))
}

func TestFetchDeduplicatesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	tc := newTypedMemory[testUser](t)

	var calls atomic.Int64
	invoke := func(context.Context) (testUser, bool, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return testUser{ID: 3, Name: "shared"}, true, nil
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, found, err := tc.Fetch(ctx, "user:3", time.Minute, invoke)
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "shared", got.Name)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}
