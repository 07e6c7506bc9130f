package xcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/omeyang/xgrid/pkg/observability/xmetrics"
	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
	"github.com/omeyang/xgrid/pkg/serialization/xentry"
	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
	"github.com/omeyang/xgrid/pkg/storage/xstore"
	"github.com/omeyang/xgrid/pkg/util/xbufpool"
	"github.com/omeyang/xgrid/pkg/util/xkeylock"
)

const component = "xcache"

// Cache 是缓存引擎。K 与 V 的运行时类型必须已在 codec 中注册。并发安全。
type Cache[K, V any] struct {
	store      xstore.Store
	serializer *xentry.Serializer
	pool       *xbufpool.Pool
	ownsPool   bool
	locks      *xkeylock.Group
	ownsLocks  bool
	stats      *statsCounter
	opts       options
	logger     *slog.Logger
	closed     atomic.Bool
}

// New 创建缓存。store 的生命周期随之转移，Destroy 会销毁它。
func New[K, V any](store xstore.Store, opts ...Option) (*Cache[K, V], error) {
	if store == nil {
		return nil, ErrNilStore
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.singleFlight != SingleFlightPerKey && o.singleFlight != SingleFlightNone {
		return nil, fmt.Errorf("%w: single flight mode %s", ErrInvalidArgument, o.singleFlight)
	}
	if o.codec == nil {
		o.codec = xcodec.New()
	}
	serializer, err := xentry.NewSerializer(o.codec)
	if err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		store:      store,
		serializer: serializer,
		pool:       o.pool,
		ownsPool:   o.ownsPool,
		opts:       o,
		logger:     o.logger.With("cache", o.name),
	}
	if c.pool == nil {
		if c.pool, err = xbufpool.New(xbufpool.WithLogger(o.logger)); err != nil {
			return nil, err
		}
		c.ownsPool = true
	}
	if o.singleFlight == SingleFlightPerKey {
		c.locks = o.locks
		if c.locks == nil {
			if c.locks, err = xkeylock.New(); err != nil {
				return nil, err
			}
			c.ownsLocks = true
		}
	}
	if o.stats {
		c.stats = &statsCounter{}
	}
	return c, nil
}

// Codec 返回类型注册表。
func (c *Cache[K, V]) Codec() *xcodec.Codec { return c.serializer.Codec() }

// Store 返回底层存储。
func (c *Cache[K, V]) Store() xstore.Store { return c.store }

// =============================================================================
// 读取
// =============================================================================

// GetIfPresent 返回 key 对应的值。未命中时 ok 为 false 并记录一次 miss。
func (c *Cache[K, V]) GetIfPresent(ctx context.Context, key K) (v V, ok bool, err error) {
	ctx, span := c.start(ctx, "get_if_present")
	defer func() { end(span, err, xmetrics.OutcomeOf(ok)) }()

	id, err := c.prepare(ctx, key)
	if err != nil {
		return v, false, err
	}
	return c.lookup(ctx, id, true)
}

// Get 返回 key 对应的值，未命中时调用 loader 加载并写入缓存。
// 加载失败返回 [*LoadError]；加载成功但写入失败时返回写入错误。
func (c *Cache[K, V]) Get(ctx context.Context, key K, loader Loader[V]) (v V, err error) {
	ctx, span := c.start(ctx, "get")
	var hit bool
	defer func() { end(span, err, xmetrics.OutcomeOf(hit)) }()

	if loader == nil {
		return v, ErrNilLoader
	}
	id, err := c.prepare(ctx, key)
	if err != nil {
		return v, err
	}
	if v, hit, err = c.lookup(ctx, id, true); err != nil || hit {
		return v, err
	}

	if c.locks != nil {
		guard, lockErr := c.locks.Lock(ctx, id)
		if lockErr != nil {
			return v, fmt.Errorf("xcache: lock key: %w", lockErr)
		}
		defer func() {
			if unlockErr := guard.Unlock(); unlockErr != nil {
				c.logger.Warn("xcache: unlock key", "error", unlockErr)
			}
		}()

		// 持锁后的二次检查是内部重试，不计入 miss。
		var present bool
		if v, present, err = c.lookup(ctx, id, false); err != nil || present {
			return v, err
		}
	}

	start := time.Now()
	v, err = safeLoad(ctx, loader)
	elapsed := time.Since(start)
	if err == nil && isNil(any(v)) {
		err = ErrNilValue
	}
	if err != nil {
		c.stats.recordLoadException(elapsed)
		loadErr := &LoadError{Key: key, Err: err}
		c.logger.Error("xcache: load failed", "key", key, "error", err, "elapsed", elapsed)
		var zero V
		return zero, loadErr
	}
	c.stats.recordLoadSuccess(elapsed)

	if err = c.put(ctx, id, xentry.NewEntry(key, v)); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// GetEntry 返回 key 对应的完整条目（含 version 与 routing），按 GetIfPresent 记录统计。
func (c *Cache[K, V]) GetEntry(ctx context.Context, key K) (e xentry.Entry, ok bool, err error) {
	ctx, span := c.start(ctx, "get_entry")
	defer func() { end(span, err, xmetrics.OutcomeOf(ok)) }()

	id, err := c.prepare(ctx, key)
	if err != nil {
		return e, false, err
	}
	data, ok, err := c.store.GetSerialized(ctx, id)
	if err != nil {
		return e, false, err
	}
	if !ok {
		c.stats.recordMiss()
		return e, false, nil
	}
	if e, err = c.decode(ctx, data); err != nil {
		return e, false, err
	}
	c.stats.recordHit()
	return e, true, nil
}

// lookup 读取并解码。record 为 false 时不更新统计。
func (c *Cache[K, V]) lookup(ctx context.Context, id string, record bool) (V, bool, error) {
	var zero V
	data, ok, err := c.store.GetSerialized(ctx, id)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		if record {
			c.stats.recordMiss()
		}
		return zero, false, nil
	}

	e, err := c.decode(ctx, data)
	if err != nil {
		return zero, false, err
	}
	v, ok := e.Value.(V)
	if !ok {
		return zero, false, fmt.Errorf("%w: cached value is %T", xcodec.ErrTypeMismatch, e.Value)
	}
	if record {
		c.stats.recordHit()
	}
	return v, true, nil
}

// =============================================================================
// 写入
// =============================================================================

// Put 写入 key 与 value，替换已有的值。
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V) (err error) {
	ctx, span := c.start(ctx, "put")
	defer func() { end(span, err, xmetrics.OutcomeNone) }()

	if isNil(any(value)) {
		return ErrNilValue
	}
	id, err := c.prepare(ctx, key)
	if err != nil {
		return err
	}
	return c.put(ctx, id, xentry.NewEntry(key, value))
}

// PutEntry 写入完整条目。e.Value 可以是任意已注册类型。
func (c *Cache[K, V]) PutEntry(ctx context.Context, e xentry.Entry) (err error) {
	ctx, span := c.start(ctx, "put_entry")
	defer func() { end(span, err, xmetrics.OutcomeNone) }()

	if err = c.check(ctx); err != nil {
		return err
	}
	if isNil(e.Key) {
		return ErrNilKey
	}
	if isNil(e.Value) {
		return ErrNilValue
	}
	id, err := c.keyID(ctx, e.Key)
	if err != nil {
		return err
	}
	return c.put(ctx, id, e)
}

func (c *Cache[K, V]) put(ctx context.Context, id string, e xentry.Entry) error {
	return c.pool.With(ctx, func(buf *xcodec.Buffer) error {
		if err := c.serializer.Encode(buf, e); err != nil {
			return err
		}
		// 存储复制记录字节，缓冲区归还后可被复用。
		return c.store.Put(ctx, id, xstore.Record{Data: buf.Bytes(), TTL: c.opts.ttl})
	})
}

// Invalidate 删除 key，不存在时为空操作。
func (c *Cache[K, V]) Invalidate(ctx context.Context, key K) (err error) {
	ctx, span := c.start(ctx, "invalidate")
	defer func() { end(span, err, xmetrics.OutcomeNone) }()

	id, err := c.prepare(ctx, key)
	if err != nil {
		return err
	}
	return c.store.Remove(ctx, id)
}

// =============================================================================
// 查询
// =============================================================================

// Keys 返回全部存活记录的 key。只解码每条记录的首字段。
func (c *Cache[K, V]) Keys(ctx context.Context) (keys []any, err error) {
	ctx, span := c.start(ctx, "keys")
	defer func() { end(span, err, xmetrics.OutcomeNone, attribute.Int("count", len(keys))) }()

	err = c.scan(ctx, func(buf *xcodec.Buffer) error {
		id, err := c.serializer.DecodeID(buf)
		if err != nil {
			return err
		}
		keys = append(keys, id)
		return nil
	})
	return keys, err
}

// Find 返回与模板匹配的全部条目。模板中为 nil 的字段视为通配。
func (c *Cache[K, V]) Find(ctx context.Context, template xentry.Entry) (found []xentry.Entry, err error) {
	ctx, span := c.start(ctx, "find")
	defer func() { end(span, err, xmetrics.OutcomeNone, attribute.Int("count", len(found))) }()

	err = c.scan(ctx, func(buf *xcodec.Buffer) error {
		ok, err := c.serializer.Matches(buf, template)
		if err != nil || !ok {
			return err
		}
		e, err := c.serializer.Decode(buf)
		if err != nil {
			return err
		}
		found = append(found, e)
		return nil
	})
	return found, err
}

// scan 借出一个缓冲区，依次包装每条记录后调用 fn。fn 返回错误时停止。
func (c *Cache[K, V]) scan(ctx context.Context, fn func(buf *xcodec.Buffer) error) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	r, ok := c.store.(xstore.Ranger)
	if !ok {
		return ErrRangeUnsupported
	}
	return c.pool.With(ctx, func(buf *xcodec.Buffer) error {
		var fnErr error
		err := r.Range(ctx, func(_ string, data []byte) bool {
			buf.Wrap(data)
			fnErr = fn(buf)
			return fnErr == nil
		})
		return errors.Join(fnErr, err)
	})
}

// =============================================================================
// 存储透传
// =============================================================================

// Size 返回存活记录数。
func (c *Cache[K, V]) Size(ctx context.Context) (n int64, err error) {
	ctx, span := c.start(ctx, "size")
	defer func() { end(span, err, xmetrics.OutcomeNone) }()

	if err = c.check(ctx); err != nil {
		return 0, err
	}
	return c.store.Size(ctx)
}

// CleanUp 让存储主动清理过期记录。
func (c *Cache[K, V]) CleanUp(ctx context.Context) (err error) {
	ctx, span := c.start(ctx, "clean_up")
	defer func() { end(span, err, xmetrics.OutcomeNone) }()

	if err = c.check(ctx); err != nil {
		return err
	}
	return c.store.CleanUp(ctx)
}

// Destroy 销毁存储并释放缓存持有的资源。之后的调用返回 [ErrClosed]。
func (c *Cache[K, V]) Destroy() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	_, span := c.start(context.Background(), "destroy")

	err := c.store.Destroy()
	if c.ownsLocks {
		err = errors.Join(err, c.locks.Close())
	}
	if c.ownsPool {
		err = errors.Join(err, c.pool.Close())
	}
	end(span, err, xmetrics.OutcomeNone)
	return err
}

// Stats 返回统计快照。未启用统计时返回 [ErrStatsDisabled]。
func (c *Cache[K, V]) Stats() (Stats, error) {
	if c.stats == nil {
		return Stats{}, ErrStatsDisabled
	}
	return c.stats.snapshot(), nil
}

// =============================================================================
// 内部辅助
// =============================================================================

func (c *Cache[K, V]) start(ctx context.Context, op string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, c.opts.observer, xmetrics.Op{
		Component: component,
		Name:      op,
		Cache:     c.opts.name,
		Kind:      xmetrics.KindLocal,
	})
}

// end 结束观测。容量或准入拒绝记为 rejected，不计入错误。
func end(span xmetrics.Span, err error, outcome xmetrics.Outcome, attrs ...attribute.KeyValue) {
	r := xmetrics.Result{Err: err, Outcome: outcome, Attrs: attrs}
	if errors.Is(err, xcapacity.ErrCapacityExceeded) || errors.Is(err, xstore.ErrRejected) {
		r.Status = xmetrics.StatusRejected
	}
	span.End(r)
}

func (c *Cache[K, V]) check(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: nil context", ErrInvalidArgument)
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// prepare 校验参数并返回 key 的存储标识。
func (c *Cache[K, V]) prepare(ctx context.Context, key K) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	if isNil(any(key)) {
		return "", ErrNilKey
	}
	return c.keyID(ctx, key)
}

// keyID 返回 key 的 Dynamic 编码，作为存储层的 key。
func (c *Cache[K, V]) keyID(ctx context.Context, key any) (id string, err error) {
	err = c.pool.With(ctx, func(buf *xcodec.Buffer) error {
		if err := c.serializer.EncodeKey(buf, key); err != nil {
			return err
		}
		id = string(buf.Bytes())
		return nil
	})
	return id, err
}

func (c *Cache[K, V]) decode(ctx context.Context, data []byte) (e xentry.Entry, err error) {
	err = c.pool.With(ctx, func(buf *xcodec.Buffer) error {
		buf.Wrap(data)
		e, err = c.serializer.Decode(buf)
		return err
	})
	return e, err
}
