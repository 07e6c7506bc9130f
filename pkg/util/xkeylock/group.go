package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Group 是按 key 互斥的锁组。零值不可用，使用 [New] 创建。
type Group struct {
	shards []shard
	mask   uint64
	max    int64

	keys   atomic.Int64
	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry 的 token 通道容量为 1：放入即持有，取出即释放。
// refs 统计持有者与等待者，归零时从分片中删除。
type entry struct {
	token chan struct{}
	refs  int
}

// New 创建锁组。
func New(opts ...Option) (*Group, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	g := &Group{
		shards: make([]shard, o.shardCount),
		mask:   uint64(o.shardCount - 1),
		max:    int64(o.maxKeys),
		done:   make(chan struct{}),
	}
	for i := range g.shards {
		g.shards[i].entries = make(map[string]*entry)
	}
	return g, nil
}

// Lock 阻塞直到获得 key 的锁、ctx 结束或锁组关闭。
func (g *Group) Lock(ctx context.Context, key string) (*Guard, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := g.ref(key)
	if err != nil {
		return nil, err
	}

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		g.unref(key, e)
		return nil, ctx.Err()
	case <-g.done:
		g.unref(key, e)
		return nil, ErrClosed
	}

	// select 在多个分支同时就绪时随机选择，关闭后不再交出新锁。
	if g.closed.Load() {
		<-e.token
		g.unref(key, e)
		return nil, ErrClosed
	}
	return &Guard{g: g, key: key, e: e}, nil
}

// TryLock 尝试立即获得 key 的锁，被占用时返回 [ErrLockOccupied]。
func (g *Group) TryLock(key string) (*Guard, error) {
	e, err := g.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.token <- struct{}{}:
		return &Guard{g: g, key: key, e: e}, nil
	default:
		g.unref(key, e)
		return nil, ErrLockOccupied
	}
}

// Len 返回当前被持有或有人等待的 key 数量。
func (g *Group) Len() int {
	return int(g.keys.Load())
}

// Close 关闭锁组：拒绝新请求并唤醒所有等待者。已持有的锁仍可正常释放。
// Close 是幂等的。
func (g *Group) Close() error {
	g.once.Do(func() {
		g.closed.Store(true)
		close(g.done)
	})
	return nil
}

func (g *Group) shardFor(key string) *shard {
	return &g.shards[xxhash.Sum64String(key)&g.mask]
}

func (g *Group) ref(key string) (*entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if g.closed.Load() {
		return nil, ErrClosed
	}

	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		if g.max > 0 && g.keys.Load() >= g.max {
			return nil, ErrMaxKeysExceeded
		}
		e = &entry{token: make(chan struct{}, 1)}
		s.entries[key] = e
		g.keys.Add(1)
	}
	e.refs++
	return e, nil
}

func (g *Group) unref(key string, e *entry) {
	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
		g.keys.Add(-1)
	}
}

// =============================================================================
// Guard
// =============================================================================

// Guard 代表一次成功获得的锁。
type Guard struct {
	g        *Group
	key      string
	e        *entry
	released atomic.Bool
}

// Key 返回被锁定的 key。
func (h *Guard) Key() string { return h.key }

// Unlock 释放锁。重复调用返回 [ErrLockNotHeld]。
func (h *Guard) Unlock() error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.e.token
	h.g.unref(h.key, h.e)
	return nil
}
