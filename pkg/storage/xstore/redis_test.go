package xstore

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgrid/pkg/observability/xmetrics"
	"github.com/omeyang/xgrid/pkg/resilience/xbreaker"
	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
)

func newTestRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis, *xcapacity.Accountant) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr:         mr.Addr(),
		DialTimeout:  100 * time.Millisecond,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		PoolSize:     2,
	})
	acc := xcapacity.New(xcapacity.Restriction{})
	store, err := NewRedis(client, acc, append([]RedisOption{WithOwnedClient(true)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Destroy() })
	return store, mr, acc
}

// =============================================================================
// 构造测试
// =============================================================================

func TestNewRedis_NilArguments(t *testing.T) {
	_, err := NewRedis(nil, xcapacity.New(xcapacity.Restriction{}))
	assert.ErrorIs(t, err, ErrNilClient)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	_, err = NewRedis(client, nil)
	assert.ErrorIs(t, err, ErrNilAccountant)
}

// =============================================================================
// 记账测试
// =============================================================================

func TestRedis_PutReplaceRemoveAccounting(t *testing.T) {
	store, _, acc := newTestRedis(t, WithKeyPrefix("c:"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user:1", Record{Data: make([]byte, 40)}))
	assert.Equal(t, xcapacity.Usage{MemoryUsed: 40, ItemCount: 1}, acc.Usage())

	require.NoError(t, store.Put(ctx, "user:1", Record{Data: make([]byte, 42)}))
	assert.Equal(t, xcapacity.Usage{MemoryUsed: 42, ItemCount: 1}, acc.Usage())

	require.NoError(t, store.Remove(ctx, "user:1"))
	assert.Equal(t, xcapacity.Usage{}, acc.Usage())

	_, ok, err := store.GetSerialized(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remove(ctx, "user:1"))
	assert.Equal(t, xcapacity.Usage{}, acc.Usage())
}

func TestRedis_RespectsCapacity(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	acc := xcapacity.New(xcapacity.Restriction{MaxItems: 1})
	store, err := NewRedis(client, acc)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "a", Record{Data: []byte("1")}))
	assert.ErrorIs(t, store.Put(ctx, "b", Record{Data: []byte("2")}), xcapacity.ErrItemsExceeded)
	assert.NoError(t, store.Put(ctx, "a", Record{Data: []byte("22")}))
	assert.False(t, mr.Exists("b"))
}

// =============================================================================
// 读写与 TTL 测试
// =============================================================================

func TestRedis_GetSerializedAndTTL(t *testing.T) {
	store, mr, _ := newTestRedis(t, WithKeyPrefix("c:"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", Record{Data: []byte("payload"), TTL: time.Minute}))
	assert.True(t, mr.Exists("c:k"))
	assert.Equal(t, time.Minute, mr.TTL("c:k"))

	data, ok, err := store.GetSerialized(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.GetSerialized(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_EmptyKey(t *testing.T) {
	store, _, _ := newTestRedis(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, "", Record{}), ErrEmptyKey)
	_, _, err := store.GetSerialized(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, store.Remove(ctx, ""), ErrEmptyKey)
}

// =============================================================================
// 遍历与销毁测试
// =============================================================================

func TestRedis_SizeAndRangeStayInNamespace(t *testing.T) {
	store, mr, _ := newTestRedis(t, WithKeyPrefix("ns:"), WithScanCount(2))
	ctx := context.Background()
	require.NoError(t, mr.Set("other", "x"))

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, k, Record{Data: []byte("v-" + k)}))
	}

	n, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got := map[string]string{}
	require.NoError(t, store.Range(ctx, func(key string, data []byte) bool {
		got[key] = string(data)
		return true
	}))
	assert.Equal(t, map[string]string{"a": "v-a", "b": "v-b", "c": "v-c"}, got)

	var visited []string
	require.NoError(t, store.Range(ctx, func(key string, _ []byte) bool {
		visited = append(visited, key)
		return false
	}))
	assert.Len(t, visited, 1)
}

func TestRedis_DestroyClearsNamespace(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	acc := xcapacity.New(xcapacity.Restriction{})
	store, err := NewRedis(client, acc, WithKeyPrefix("p:"), WithOwnedClient(true))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mr.Set("keep", "x"))
	require.NoError(t, store.Put(ctx, "a", Record{Data: []byte("aa")}))
	require.NoError(t, store.Put(ctx, "b", Record{Data: []byte("bbb")}))

	require.NoError(t, store.Destroy())
	assert.Equal(t, xcapacity.Usage{}, acc.Usage())
	keys := mr.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"keep"}, keys)

	assert.ErrorIs(t, store.Destroy(), ErrClosed)
	assert.ErrorIs(t, store.Put(ctx, "a", Record{}), ErrClosed)
	_, err = store.Size(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// 熔断测试
// =============================================================================

func TestRedis_CircuitBreakerOpensOnFailures(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store, err := NewRedis(client, xcapacity.New(xcapacity.Restriction{}),
		WithCircuitBreaker(
			xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(2)),
			xbreaker.WithTimeout(time.Minute),
		))
	require.NoError(t, err)

	ctx := context.Background()
	_, ok, err := store.GetSerialized(ctx, "missing")
	require.NoError(t, err, "redis.Nil must not trip the breaker")
	assert.False(t, ok)

	mr.Close()
	for range 2 {
		_, _, err = store.GetSerialized(ctx, "k")
		require.Error(t, err)
	}
	_, _, err = store.GetSerialized(ctx, "k")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
	assert.True(t, xbreaker.IsOpen(err))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "plain:", escapeGlob("plain:"))
	assert.Equal(t, `a\*b\?\[c\]\\`, escapeGlob(`a*b?[c]\`))
}

func TestRemovalCause_String(t *testing.T) {
	assert.Equal(t, "explicit", RemovalExplicit.String())
	assert.Equal(t, "expired", RemovalExpired.String())
	assert.Equal(t, "RemovalCause(0)", RemovalCause(0).String())
}

func TestRecord_ExpireAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, Record{}.ExpireAt(now).IsZero())
	assert.Equal(t, now.Add(time.Second), Record{TTL: time.Second}.ExpireAt(now))
	assert.Equal(t, int64(3), Record{Data: []byte("abc")}.Size())
}

func TestRedis_ObserverTracesCommands(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithTracerProvider(tp))
	require.NoError(t, err)

	store, _, _ := newTestRedis(t, WithKeyPrefix("obs:"), WithRedisObserver(obs))
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", Record{Data: []byte("v")}))
	_, ok, err := store.GetSerialized(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	var names []string
	for _, sp := range exp.GetSpans() {
		names = append(names, sp.Name)
		assert.Equal(t, trace.SpanKindClient, sp.SpanKind)
	}
	assert.Equal(t, []string{"xstore.redis.strlen", "xstore.redis.set", "xstore.redis.get"}, names)
}
