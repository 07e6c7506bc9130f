package xstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xgrid/pkg/observability/xmetrics"
	"github.com/omeyang/xgrid/pkg/resilience/xbreaker"
	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
)

// =============================================================================
// Redis 配置选项
// =============================================================================

const (
	defaultScanCount      = 256
	defaultDestroyTimeout = 30 * time.Second
)

// RedisOption 定义配置 Redis 存储的函数类型。
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix         string
	scanCount      int64
	ownsClient     bool
	destroyTimeout time.Duration
	breaker        []xbreaker.Option
	withBreaker    bool
	observer       xmetrics.Observer
	logger         *slog.Logger
}

func defaultRedisOptions() redisOptions {
	return redisOptions{
		scanCount:      defaultScanCount,
		destroyTimeout: defaultDestroyTimeout,
		logger:         slog.Default(),
	}
}

// WithKeyPrefix 设置 key 命名空间前缀。Size/Range/Destroy 只作用于该前缀下的 key。
func WithKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithScanCount 设置 SCAN 每批的 COUNT 提示。n <= 0 时忽略。
func WithScanCount(n int64) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.scanCount = n
		}
	}
}

// WithOwnedClient 声明存储拥有客户端，Destroy 时关闭它。默认不关闭。
func WithOwnedClient(owned bool) RedisOption {
	return func(o *redisOptions) {
		o.ownsClient = owned
	}
}

// WithDestroyTimeout 设置 Destroy 清理命名空间的超时。默认 30s。
func WithDestroyTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		if d > 0 {
			o.destroyTimeout = d
		}
	}
}

// WithCircuitBreaker 用熔断器保护所有 Redis 调用，熔断器名为 "xstore.redis"。
// 默认 redis.Nil 与 context 取消不计为失败，可用 xbreaker.WithSuccessPolicy 覆盖。
func WithCircuitBreaker(opts ...xbreaker.Option) RedisOption {
	return func(o *redisOptions) {
		o.withBreaker = true
		o.breaker = append(o.breaker, opts...)
	}
}

// WithRedisObserver 为每条 Redis 命令创建 remote 类型的观测跨度。
func WithRedisObserver(obs xmetrics.Observer) RedisOption {
	return func(o *redisOptions) {
		o.observer = obs
	}
}

// WithRedisLogger 设置自定义日志记录器。默认使用 slog.Default()。
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// =============================================================================
// Redis 存储
// =============================================================================

// Redis 是基于 Redis 的 [Store] 实现，同时实现 [Ranger]。
type Redis struct {
	client redis.UniversalClient
	acc    *xcapacity.Accountant
	opts   redisOptions
	cb     *xbreaker.Breaker
	closed atomic.Bool
}

var (
	_ Store  = (*Redis)(nil)
	_ Ranger = (*Redis)(nil)
)

// NewRedis 创建 Redis 存储。client 和 acc 不能为 nil。
func NewRedis(client redis.UniversalClient, acc *xcapacity.Accountant, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if acc == nil {
		return nil, ErrNilAccountant
	}
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Redis{client: client, acc: acc, opts: o}
	if o.withBreaker {
		bopts := append([]xbreaker.Option{
			xbreaker.WithSuccessPolicy(xbreaker.SuccessFunc(isRedisSuccess)),
			xbreaker.WithLogger(o.logger),
		}, o.breaker...)
		r.cb = xbreaker.NewBreaker("xstore.redis", bopts...)
	}
	return r, nil
}

// Client 返回底层的 redis.UniversalClient。
func (r *Redis) Client() redis.UniversalClient { return r.client }

// Put 写入记录，用 SET ... GET 取回被替换的旧值以计算准确的增量。
func (r *Redis) Put(ctx context.Context, key string, rec Record) error {
	if err := r.check(key); err != nil {
		return err
	}
	k := r.opts.prefix + key

	var prev int64
	if err := r.do(ctx, "strlen", func() error {
		n, err := r.client.StrLen(ctx, k).Result()
		prev = n
		return err
	}); err != nil {
		return fmt.Errorf("xstore: redis strlen: %w", err)
	}
	if err := r.acc.EnsureReplaceCapacity(rec.Size(), prev, key); err != nil {
		return err
	}

	var old []byte
	var replaced bool
	err := r.do(ctx, "set", func() error {
		v, err := r.client.SetArgs(ctx, k, rec.Data, redis.SetArgs{TTL: rec.TTL, Get: true}).Result()
		if errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			old, replaced = []byte(v), true
		}
		return err
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("xstore: redis set: %w", err)
	}

	if replaced {
		r.acc.Add(rec.Size(), int64(len(old)))
	} else {
		r.acc.Add(rec.Size(), 0)
	}
	return nil
}

// GetSerialized 读取记录字节。
func (r *Redis) GetSerialized(ctx context.Context, key string) ([]byte, bool, error) {
	if err := r.check(key); err != nil {
		return nil, false, err
	}
	var data []byte
	err := r.do(ctx, "get", func() error {
		v, err := r.client.Get(ctx, r.opts.prefix+key).Bytes()
		data = v
		return err
	})
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("xstore: redis get: %w", err)
	}
	return data, true, nil
}

// Remove 用 GETDEL 删除记录并扣除其大小。
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.check(key); err != nil {
		return err
	}
	freed, ok, err := r.getDel(ctx, r.opts.prefix+key)
	if err != nil {
		return err
	}
	if ok {
		r.acc.Remove(freed)
	}
	return nil
}

func (r *Redis) getDel(ctx context.Context, fullKey string) (int64, bool, error) {
	var freed int64
	err := r.do(ctx, "getdel", func() error {
		v, err := r.client.GetDel(ctx, fullKey).Bytes()
		freed = int64(len(v))
		return err
	})
	switch {
	case errors.Is(err, redis.Nil):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("xstore: redis getdel: %w", err)
	}
	return freed, true, nil
}

// Size 返回命名空间下的 key 数量（SCAN 计数）。
func (r *Redis) Size(ctx context.Context) (int64, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	var n int64
	err := r.scan(ctx, func(keys []string) (bool, error) {
		n += int64(len(keys))
		return true, nil
	})
	return n, err
}

// CleanUp 是空操作：Redis 在服务端执行 TTL。
func (r *Redis) CleanUp(context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Range 遍历命名空间下的全部记录。遍历期间被删除的 key 会被跳过。
func (r *Redis) Range(ctx context.Context, fn func(key string, data []byte) bool) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.scan(ctx, func(keys []string) (bool, error) {
		var vals []any
		if err := r.do(ctx, "mget", func() error {
			v, err := r.client.MGet(ctx, keys...).Result()
			vals = v
			return err
		}); err != nil {
			return false, fmt.Errorf("xstore: redis mget: %w", err)
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if !fn(strings.TrimPrefix(keys[i], r.opts.prefix), []byte(s)) {
				return false, nil
			}
		}
		return true, nil
	})
}

// Destroy 删除命名空间下的全部 key 并扣除记账，拥有客户端时关闭它。
func (r *Redis) Destroy() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.destroyTimeout)
	defer cancel()

	err := r.scan(ctx, func(keys []string) (bool, error) {
		for _, k := range keys {
			freed, ok, err := r.getDel(ctx, k)
			if err != nil {
				return false, err
			}
			if ok {
				r.acc.Remove(freed)
			}
		}
		return true, nil
	})
	if err != nil {
		r.opts.logger.Warn("xstore: redis destroy incomplete", "prefix", r.opts.prefix, "error", err)
	}
	if r.opts.ownsClient {
		err = errors.Join(err, r.client.Close())
	}
	return err
}

// =============================================================================
// 辅助函数
// =============================================================================

func (r *Redis) check(key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

// do 在熔断器保护下执行一条命令 fn。redis.Nil 不计为失败。
func (r *Redis) do(ctx context.Context, cmd string, fn func() error) (err error) {
	_, span := xmetrics.Start(ctx, r.opts.observer, xmetrics.Op{
		Component: "xstore.redis",
		Name:      cmd,
		Cache:     r.opts.prefix,
		Kind:      xmetrics.KindRemote,
	})
	defer func() {
		res := xmetrics.Result{Err: err}
		if errors.Is(err, redis.Nil) {
			res = xmetrics.Result{Outcome: xmetrics.OutcomeMiss}
		}
		span.End(res)
	}()

	if r.cb == nil {
		return fn()
	}
	err = r.cb.Do(ctx, fn)
	if xbreaker.IsBreakerError(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// scan 以批为单位遍历命名空间下的 key。fn 返回 false 时停止。
func (r *Redis) scan(ctx context.Context, fn func(keys []string) (bool, error)) error {
	match := escapeGlob(r.opts.prefix) + "*"
	var cursor uint64
	for {
		var keys []string
		if err := r.do(ctx, "scan", func() error {
			var err error
			keys, cursor, err = r.client.Scan(ctx, cursor, match, r.opts.scanCount).Result()
			return err
		}); err != nil {
			return fmt.Errorf("xstore: redis scan: %w", err)
		}
		if len(keys) > 0 {
			more, err := fn(keys)
			if err != nil || !more {
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

func isRedisSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, redis.Nil) ||
		errors.Is(err, context.Canceled)
}

// escapeGlob 转义 Redis MATCH 模式中的特殊字符。
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(`*?[]\`, s[i]) >= 0 {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
