package xstore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
)

// =============================================================================
// Memory 配置选项
// =============================================================================

// MinMemoryMaxCost 内存存储最小容量（1MB）。
const MinMemoryMaxCost = 1 << 20

// MemoryOption 定义配置内存存储的函数类型。
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	numCounters int64
	maxCost     int64
	bufferItems int64
}

func defaultMemoryOptions() memoryOptions {
	return memoryOptions{
		numCounters: 1e6,
		maxCost:     64 << 20,
		bufferItems: 64,
	}
}

// WithMemoryNumCounters 设置频率计数器数量，建议为预期 key 数量的 10 倍。
// n <= 0 时忽略。
func WithMemoryNumCounters(n int64) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.numCounters = n
		}
	}
}

// WithMemoryMaxCost 设置最大容量（字节），小于 MinMemoryMaxCost 时取 MinMemoryMaxCost。
// cost <= 0 时忽略。
func WithMemoryMaxCost(cost int64) MemoryOption {
	return func(o *memoryOptions) {
		if cost > 0 {
			o.maxCost = max(cost, MinMemoryMaxCost)
		}
	}
}

// WithMemoryBufferItems 设置写入缓冲区大小。n <= 0 时忽略。
func WithMemoryBufferItems(n int64) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.bufferItems = n
		}
	}
}

// =============================================================================
// Memory 存储
// =============================================================================

// Memory 是基于 ristretto 的堆内 [Store] 实现。
//
// 变更操作在同一把互斥锁下执行并等待 ristretto 写缓冲落地，
// 保证替换/删除时读到的旧记录大小与实际被替换的记录一致。
// TTL 已到期但尚未被 ristretto 清理的记录若被同 key 覆盖，
// 会按新插入记账，这是 ristretto 不暴露过期条目导致的已知偏差。
type Memory struct {
	cache *ristretto.Cache[string, []byte]
	acc   *xcapacity.Accountant
	local *xcapacity.Accountant // 本存储自身的用量，用于 Size 与 Destroy

	mu     sync.Mutex
	closed atomic.Bool
}

var _ Store = (*Memory)(nil)

// NewMemory 创建内存存储。acc 不能为 nil。
func NewMemory(acc *xcapacity.Accountant, opts ...MemoryOption) (*Memory, error) {
	if acc == nil {
		return nil, ErrNilAccountant
	}
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m := &Memory{acc: acc, local: xcapacity.New(xcapacity.Restriction{})}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        o.numCounters,
		MaxCost:            o.maxCost,
		BufferItems:        o.bufferItems,
		Metrics:            true,
		IgnoreInternalCost: true,
		OnEvict:            m.onDrop,
		OnReject:           m.onDrop,
	})
	if err != nil {
		return nil, fmt.Errorf("xstore: create memory cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Client 返回底层的 ristretto.Cache，用于读取 Metrics 等。
func (m *Memory) Client() *ristretto.Cache[string, []byte] { return m.cache }

// onDrop 处理被淘汰、过期清理或被准入策略拒绝的记录。
func (m *Memory) onDrop(item *ristretto.Item[[]byte]) {
	cost := item.Cost
	if cost == 0 {
		// Clear 路径不填充 Cost。
		cost = int64(len(item.Value))
	}
	m.acc.Remove(cost)
	m.local.Remove(cost)
}

// Put 写入记录。记录被 TinyLFU 准入策略拒绝时，记账通过 OnReject 回滚。
func (m *Memory) Put(_ context.Context, key string, rec Record) error {
	if err := m.check(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev int64
	if old, ok := m.cache.Get(key); ok {
		prev = int64(len(old))
	}
	if err := m.acc.EnsureReplaceCapacity(rec.Size(), prev, key); err != nil {
		return err
	}

	m.acc.Add(rec.Size(), prev)
	m.local.Add(rec.Size(), prev)
	if !m.cache.SetWithTTL(key, bytes.Clone(rec.Data), rec.Size(), rec.TTL) {
		m.undoAdd(rec.Size(), prev)
		return ErrRejected
	}
	m.cache.Wait()
	return nil
}

func (m *Memory) undoAdd(size, prev int64) {
	if prev > 0 {
		m.acc.Add(prev, size)
		m.local.Add(prev, size)
		return
	}
	m.acc.Remove(size)
	m.local.Remove(size)
}

// GetSerialized 读取记录字节的副本。
func (m *Memory) GetSerialized(_ context.Context, key string) ([]byte, bool, error) {
	if err := m.check(key); err != nil {
		return nil, false, err
	}
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Remove 删除记录。
func (m *Memory) Remove(_ context.Context, key string) error {
	if err := m.check(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.cache.Get(key)
	if !ok {
		return nil
	}
	m.cache.Del(key)
	m.cache.Wait()
	m.acc.Remove(int64(len(old)))
	m.local.Remove(int64(len(old)))
	return nil
}

// Size 返回存活记录数。
func (m *Memory) Size(context.Context) (int64, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	return m.local.ItemCount(), nil
}

// CleanUp 是空操作：ristretto 由内部定时器清理过期记录。
func (m *Memory) CleanUp(context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Destroy 关闭 ristretto 并归还全部记账。
func (m *Memory) Destroy() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Close()
	u := m.local.Usage()
	m.acc.Sub(u)
	m.local.Sub(u)
	return nil
}

func (m *Memory) check(key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
