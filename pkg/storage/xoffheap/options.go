package xoffheap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xgrid/pkg/storage/xstore"
)

const (
	defaultShards        = 64
	defaultChunkSize     = 1 << 20
	minChunkSize         = 4 << 10
	maxChunkSize         = 1 << 30
	defaultListenerQueue = 1024
)

// Option 定义 [Store] 的可选配置。
type Option func(*options)

type options struct {
	shards          int
	chunkSize       int
	clock           func() time.Time
	cleanupSchedule string
	evictOnOverflow bool
	listener        xstore.RemovalListener
	listenerWorkers int
	listenerQueue   int
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		shards:          defaultShards,
		chunkSize:       defaultChunkSize,
		clock:           time.Now,
		listenerWorkers: 1,
		listenerQueue:   defaultListenerQueue,
		logger:          slog.Default(),
	}
}

// WithShards 设置索引分片数，必须为 2 的幂。默认 64。
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithChunkSize 设置每个映射块的字节数，取值 [4KiB, 1GiB]。默认 1MiB。
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithClock 替换用于计算过期的时钟，主要用于测试。nil 被忽略。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithCleanupSchedule 按 cron 表达式定期执行 CleanUp，如 "@every 30s"。
// 空字符串表示不启动后台清理（默认）。
func WithCleanupSchedule(spec string) Option {
	return func(o *options) {
		o.cleanupSchedule = spec
	}
}

// WithEvictOnOverflow 启用容量溢出时的 LRU 淘汰。默认关闭，溢出直接返回容量错误。
func WithEvictOnOverflow(enabled bool) Option {
	return func(o *options) {
		o.evictOnOverflow = enabled
	}
}

// WithRemovalListener 注册删除通知监听器。
func WithRemovalListener(fn xstore.RemovalListener) Option {
	return func(o *options) {
		o.listener = fn
	}
}

// WithListenerWorkers 设置执行监听器的 worker 数与队列长度。
// n <= 0 或 queue <= 0 时对应项保持默认（1 个 worker，队列 1024）。
func WithListenerWorkers(n, queue int) Option {
	return func(o *options) {
		if n > 0 {
			o.listenerWorkers = n
		}
		if queue > 0 {
			o.listenerQueue = queue
		}
	}
}

// WithLogger 设置日志记录器，默认 slog.Default()。nil 被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func (o *options) validate() error {
	if o.shards <= 0 || o.shards&(o.shards-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShardCount, o.shards)
	}
	if o.chunkSize < minChunkSize || o.chunkSize > maxChunkSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidChunkSize, o.chunkSize, minChunkSize, maxChunkSize)
	}
	return nil
}
