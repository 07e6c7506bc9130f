package xstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
)

func newTestMemory(t *testing.T, r xcapacity.Restriction) (*Memory, *xcapacity.Accountant) {
	t.Helper()
	acc := xcapacity.New(r)
	store, err := NewMemory(acc, WithMemoryNumCounters(1e4), WithMemoryMaxCost(1<<20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Destroy() })
	return store, acc
}

func TestNewMemory_NilAccountant(t *testing.T) {
	_, err := NewMemory(nil)
	assert.ErrorIs(t, err, ErrNilAccountant)
}

func TestMemory_PutReplaceRemoveAccounting(t *testing.T) {
	store, acc := newTestMemory(t, xcapacity.Restriction{})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user:1", Record{Data: make([]byte, 40)}))
	assert.Equal(t, xcapacity.Usage{MemoryUsed: 40, ItemCount: 1}, acc.Usage())

	require.NoError(t, store.Put(ctx, "user:1", Record{Data: make([]byte, 42)}))
	assert.Equal(t, xcapacity.Usage{MemoryUsed: 42, ItemCount: 1}, acc.Usage())

	n, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.Remove(ctx, "user:1"))
	assert.Equal(t, xcapacity.Usage{}, acc.Usage())

	_, ok, err := store.GetSerialized(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	store, _ := newTestMemory(t, xcapacity.Restriction{})
	ctx := context.Background()

	src := []byte("payload")
	require.NoError(t, store.Put(ctx, "k", Record{Data: src}))
	src[0] = 'X'

	got, ok, err := store.GetSerialized(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	got[0] = 'Y'
	again, _, _ := store.GetSerialized(ctx, "k")
	assert.Equal(t, []byte("payload"), again)
}

func TestMemory_TTLExpiry(t *testing.T) {
	store, _ := newTestMemory(t, xcapacity.Restriction{})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", Record{Data: []byte("v"), TTL: 20 * time.Millisecond}))
	time.Sleep(50 * time.Millisecond)

	_, ok, err := store.GetSerialized(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_RespectsCapacity(t *testing.T) {
	store, acc := newTestMemory(t, xcapacity.Restriction{MaxMemoryBytes: 10})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", Record{Data: make([]byte, 8)}))
	assert.ErrorIs(t, store.Put(ctx, "b", Record{Data: make([]byte, 8)}), xcapacity.ErrMemoryExceeded)
	assert.Equal(t, xcapacity.Usage{MemoryUsed: 8, ItemCount: 1}, acc.Usage())
}

func TestMemory_DestroyReturnsAccounting(t *testing.T) {
	acc := xcapacity.New(xcapacity.Restriction{})
	acc.Add(100, 0) // 其他存储共享同一记账器
	store, err := NewMemory(acc)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "a", Record{Data: make([]byte, 10)}))
	require.NoError(t, store.Put(ctx, "b", Record{Data: make([]byte, 20)}))

	require.NoError(t, store.Destroy())
	assert.Equal(t, xcapacity.Usage{MemoryUsed: 100, ItemCount: 1}, acc.Usage())

	assert.ErrorIs(t, store.Destroy(), ErrClosed)
	_, _, err = store.GetSerialized(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
}
