package xoffheap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/xgrid/pkg/distributed/xcron"
	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
	"github.com/omeyang/xgrid/pkg/storage/xstore"
	"github.com/omeyang/xgrid/pkg/util/xlru"
	"github.com/omeyang/xgrid/pkg/util/xpool"
)

// handle 是记录在堆上的全部痕迹。
type handle struct {
	slot     slot
	length   int
	expireAt int64 // UnixNano，0 表示永不过期
}

func (h handle) expired(now int64) bool {
	return h.expireAt != 0 && now >= h.expireAt
}

type shard struct {
	mu      sync.RWMutex
	handles map[string]handle
}

// Stats 是存储的运行时快照。
type Stats struct {
	Items                int64 // 索引中的记录数（含未回收的过期记录）
	MemoryUsed           int64 // 记录字节总数
	MappedBytes          int64 // 向操作系统申请的映射字节数
	Chunks               int   // 分级 chunk 数
	Dedicated            int   // 独占映射数
	Evictions            int64 // 累计溢出淘汰数
	DroppedNotifications int64 // 因监听队列满被丢弃的通知数
}

// Store 是堆外记录存储，实现 [xstore.Store] 与 [xstore.Ranger]。
type Store struct {
	acc    *xcapacity.Accountant
	arena  *arena
	shards []shard
	mask   uint64
	opts   options
	logger *slog.Logger

	// recency 仅在启用溢出淘汰时非 nil。
	recency *xlru.Order[string]

	listeners *xpool.Pool[xstore.RemovalNotification]
	janitor   *xcron.Scheduler

	items     atomic.Int64
	bytes     atomic.Int64
	evictions atomic.Int64
	dropped   atomic.Int64
	destroyed atomic.Bool
}

var (
	_ xstore.Store  = (*Store)(nil)
	_ xstore.Ranger = (*Store)(nil)
)

// New 创建堆外存储。acc 不能为 nil。
func New(acc *xcapacity.Accountant, opts ...Option) (*Store, error) {
	if acc == nil {
		return nil, ErrNilAccountant
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	s := &Store{
		acc:    acc,
		arena:  newArena(o.chunkSize),
		shards: make([]shard, o.shards),
		mask:   uint64(o.shards - 1),
		opts:   o,
		logger: o.logger,
	}
	for i := range s.shards {
		s.shards[i].handles = make(map[string]handle)
	}

	if o.evictOnOverflow {
		rec, err := xlru.New[string](0)
		if err != nil {
			return nil, fmt.Errorf("xoffheap: create recency list: %w", err)
		}
		s.recency = rec
	}

	if o.listener != nil {
		p, err := xpool.New(o.listenerWorkers, o.listenerQueue, o.listener,
			xpool.WithLogger(o.logger), xpool.WithName("xoffheap-removal"))
		if err != nil {
			return nil, fmt.Errorf("xoffheap: create listener pool: %w", err)
		}
		s.listeners = p
	}

	if o.cleanupSchedule != "" {
		sched := xcron.New(xcron.WithLogger(o.logger))
		if _, err := sched.AddFunc(o.cleanupSchedule, "xoffheap-cleanup", s.scheduledCleanup); err != nil {
			s.closeListeners()
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
		sched.Start()
		s.janitor = sched
	}
	return s, nil
}

// =============================================================================
// 读写
// =============================================================================

// Put 写入或替换记录。容量不足且未启用淘汰时返回 [xcapacity.ErrCapacityExceeded]。
// 启用淘汰时，空存储也无法容纳的记录直接被拒绝，不淘汰任何已有记录。
func (s *Store) Put(_ context.Context, key string, rec xstore.Record) error {
	if err := s.check(key); err != nil {
		return err
	}
	for evicting := false; ; evicting = true {
		err := s.tryPut(key, rec)
		if err == nil || s.recency == nil || !errors.Is(err, xcapacity.ErrCapacityExceeded) {
			return err
		}
		if !evicting {
			if fitErr := s.acc.Fits(rec.Size(), key); fitErr != nil {
				return fitErr
			}
		}
		if !s.evictOldest() {
			return err
		}
	}
}

func (s *Store) tryPut(key string, rec xstore.Record) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s.destroyed.Load() {
		return ErrDestroyed
	}

	now := s.opts.clock()
	old, exists := sh.handles[key]
	if exists && old.expired(now.UnixNano()) {
		s.dropLocked(sh, key, old, xstore.RemovalExpired)
		exists = false
	}
	var prev int64
	if exists {
		prev = int64(old.length)
	}
	size := rec.Size()
	if err := s.acc.EnsureReplaceCapacity(size, prev, key); err != nil {
		return err
	}

	h := handle{length: len(rec.Data)}
	if !rec.ExpireAt(now).IsZero() {
		h.expireAt = rec.ExpireAt(now).UnixNano()
	}
	if h.length > 0 {
		sl, err := s.arena.alloc(h.length)
		if err != nil {
			return err
		}
		copy(s.arena.bytes(sl, h.length), rec.Data)
		h.slot = sl
	}
	sh.handles[key] = h

	if exists {
		s.freeSlot(old)
		s.acc.Add(size, prev)
		if prev == 0 {
			// 替换 0 字节记录时 Add 会按新插入计数。
			s.acc.Sub(xcapacity.Usage{ItemCount: 1})
		}
		s.bytes.Add(size - prev)
		s.notify(key, prev, xstore.RemovalReplaced)
	} else {
		s.acc.Add(size, 0)
		s.items.Add(1)
		s.bytes.Add(size)
	}
	s.touch(key)
	return nil
}

// GetSerialized 返回记录字节的副本。
func (s *Store) GetSerialized(_ context.Context, key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}
	sh := s.shardFor(key)
	now := s.opts.clock().UnixNano()

	sh.mu.RLock()
	if s.destroyed.Load() {
		sh.mu.RUnlock()
		return nil, false, ErrDestroyed
	}
	h, ok := sh.handles[key]
	if !ok {
		sh.mu.RUnlock()
		return nil, false, nil
	}
	if h.expired(now) {
		sh.mu.RUnlock()
		s.reclaimExpired(key, now)
		return nil, false, nil
	}
	data := s.copyOut(h)
	sh.mu.RUnlock()

	s.touch(key)
	return data, true, nil
}

// Remove 删除记录，不存在时为空操作。
func (s *Store) Remove(_ context.Context, key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	return s.removeWithCause(key, xstore.RemovalExplicit)
}

func (s *Store) removeWithCause(key string, cause xstore.RemovalCause) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	h, ok := sh.handles[key]
	if !ok {
		return nil
	}
	if h.expired(s.opts.clock().UnixNano()) {
		cause = xstore.RemovalExpired
	}
	s.dropLocked(sh, key, h, cause)
	return nil
}

// Size 返回未过期的记录数。
func (s *Store) Size(context.Context) (int64, error) {
	if s.destroyed.Load() {
		return 0, ErrDestroyed
	}
	now := s.opts.clock().UnixNano()
	var n int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, h := range sh.handles {
			if !h.expired(now) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n, nil
}

// CleanUp 回收全部已过期的记录。
func (s *Store) CleanUp(ctx context.Context) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	now := s.opts.clock().UnixNano()
	var reclaimed int
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh := &s.shards[i]
		sh.mu.Lock()
		if s.destroyed.Load() {
			sh.mu.Unlock()
			return ErrDestroyed
		}
		for key, h := range sh.handles {
			if h.expired(now) {
				s.dropLocked(sh, key, h, xstore.RemovalExpired)
				reclaimed++
			}
		}
		sh.mu.Unlock()
	}
	if reclaimed > 0 {
		s.logger.Debug("xoffheap: expired records reclaimed", "count", reclaimed)
	}
	return nil
}

// Range 遍历未过期的记录。每个分片的记录先复制出来再回调，
// fn 中可以安全地读写本存储。
func (s *Store) Range(ctx context.Context, fn func(key string, data []byte) bool) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	type kv struct {
		key  string
		data []byte
	}
	now := s.opts.clock().UnixNano()
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh := &s.shards[i]
		sh.mu.RLock()
		if s.destroyed.Load() {
			sh.mu.RUnlock()
			return ErrDestroyed
		}
		batch := make([]kv, 0, len(sh.handles))
		for key, h := range sh.handles {
			if !h.expired(now) {
				batch = append(batch, kv{key, s.copyOut(h)})
			}
		}
		sh.mu.RUnlock()

		for _, e := range batch {
			if !fn(e.key, e.data) {
				return nil
			}
		}
	}
	return nil
}

// Destroy 停止后台清理、归还全部记账并解除全部映射。
// 每条记录产生一次 [xstore.RemovalDestroyed] 通知，Destroy 返回前通知已派发完毕。
func (s *Store) Destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}
	if s.janitor != nil {
		_ = s.janitor.Stop(context.Background())
	}

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, h := range sh.handles {
			s.dropLocked(sh, key, h, xstore.RemovalDestroyed)
		}
		sh.mu.Unlock()
	}

	err := s.arena.release()
	s.closeListeners()
	return err
}

// Stats 返回运行时快照。
func (s *Store) Stats() Stats {
	as := s.arena.stats()
	return Stats{
		Items:                s.items.Load(),
		MemoryUsed:           s.bytes.Load(),
		MappedBytes:          as.mapped,
		Chunks:               as.chunks,
		Dedicated:            as.dedicated,
		Evictions:            s.evictions.Load(),
		DroppedNotifications: s.dropped.Load(),
	}
}

// =============================================================================
// 内部辅助
// =============================================================================

func (s *Store) check(key string) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func (s *Store) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)&s.mask]
}

func (s *Store) copyOut(h handle) []byte {
	out := make([]byte, h.length)
	if h.length > 0 {
		copy(out, s.arena.bytes(h.slot, h.length))
	}
	return out
}

// dropLocked 删除索引项、归还槽位与记账并发出通知。调用方持有 sh.mu。
func (s *Store) dropLocked(sh *shard, key string, h handle, cause xstore.RemovalCause) {
	delete(sh.handles, key)
	s.freeSlot(h)
	size := int64(h.length)
	s.acc.Remove(size)
	if size == 0 {
		// Accountant 对 0 字节的 Remove 不扣减条目数。
		s.acc.Sub(xcapacity.Usage{ItemCount: 1})
	}
	s.items.Add(-1)
	s.bytes.Add(-size)
	s.forget(key)
	s.notify(key, size, cause)
}

func (s *Store) freeSlot(h handle) {
	if h.length == 0 {
		return
	}
	if err := s.arena.free(h.slot); err != nil {
		s.logger.Warn("xoffheap: free slot", "error", err)
	}
}

func (s *Store) reclaimExpired(key string, now int64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s.destroyed.Load() {
		return
	}
	if h, ok := sh.handles[key]; ok && h.expired(now) {
		s.dropLocked(sh, key, h, xstore.RemovalExpired)
	}
}

// scheduledCleanup 由 janitor 触发。被 Destroy 打断或发生在 Destroy 之后的那一次不算失败。
func (s *Store) scheduledCleanup(ctx context.Context) error {
	err := s.CleanUp(ctx)
	if err != nil && !errors.Is(err, ErrDestroyed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Store) notify(key string, size int64, cause xstore.RemovalCause) {
	if s.listeners == nil {
		return
	}
	n := xstore.RemovalNotification{Key: key, Size: size, Cause: cause}
	if err := s.listeners.Submit(n); err != nil {
		s.dropped.Add(1)
		s.logger.Warn("xoffheap: removal notification dropped", "key", key, "cause", cause.String(), "error", err)
	}
}

func (s *Store) closeListeners() {
	if s.listeners == nil {
		return
	}
	if err := s.listeners.Close(); err != nil {
		s.logger.Warn("xoffheap: close listener pool", "error", err)
	}
}

// =============================================================================
// 溢出淘汰
// =============================================================================

func (s *Store) touch(key string) {
	if s.recency == nil {
		return
	}
	s.recency.Touch(key)
}

func (s *Store) forget(key string) {
	if s.recency == nil {
		return
	}
	s.recency.Forget(key)
}

// evictOldest 淘汰最近最少使用的记录。没有可淘汰记录时返回 false。
func (s *Store) evictOldest() bool {
	key, ok := s.recency.PopOldest()
	if !ok {
		return false
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s.destroyed.Load() {
		return false
	}
	if h, exists := sh.handles[key]; exists {
		s.dropLocked(sh, key, h, xstore.RemovalEvicted)
		s.evictions.Add(1)
		s.logger.Debug("xoffheap: record evicted", "key", key, "size", h.length)
	}
	return true
}
