package xcache

import (
	"log/slog"
	"time"

	"github.com/omeyang/xgrid/pkg/observability/xmetrics"
	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
	"github.com/omeyang/xgrid/pkg/util/xbufpool"
	"github.com/omeyang/xgrid/pkg/util/xkeylock"
)

// Option 定义 [Cache] 的可选配置。
type Option func(*options)

type options struct {
	codec        *xcodec.Codec
	pool         *xbufpool.Pool
	ownsPool     bool
	ttl          time.Duration
	stats        bool
	singleFlight SingleFlight
	locks        *xkeylock.Group
	observer     xmetrics.Observer
	logger       *slog.Logger
	name         string
}

func defaultOptions() options {
	return options{
		singleFlight: SingleFlightPerKey,
		observer:     xmetrics.NoopObserver{},
		logger:       slog.Default(),
		name:         "default",
	}
}

// WithCodec 设置类型注册表，默认 xcodec.New()。
// 缓存的值类型与 key 类型必须已在 codec 中注册。
func WithCodec(c *xcodec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithBufferPool 设置共享的缓冲池，默认创建私有的弹性池。
// 传入的池由调用方负责关闭。
func WithBufferPool(p *xbufpool.Pool) Option {
	return func(o *options) {
		if p != nil {
			o.pool = p
			o.ownsPool = false
		}
	}
}

// WithTTL 设置写入记录的存活时长，<= 0 表示永不过期（默认）。
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = max(d, 0)
	}
}

// WithStats 启用命中与加载统计。
func WithStats(enabled bool) Option {
	return func(o *options) {
		o.stats = enabled
	}
}

// WithSingleFlight 设置未命中加载的互斥方式，默认 [SingleFlightPerKey]。
func WithSingleFlight(mode SingleFlight) Option {
	return func(o *options) {
		o.singleFlight = mode
	}
}

// WithKeyLock 设置共享的 key 锁组，多个缓存共用同一存储时可保证跨实例互斥。
// 传入的锁组由调用方负责关闭。SingleFlightNone 模式下忽略。
func WithKeyLock(g *xkeylock.Group) Option {
	return func(o *options) {
		if g != nil {
			o.locks = g
		}
	}
}

// WithObserver 设置观测器，默认不观测。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
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

// WithName 设置缓存名称，出现在日志与观测属性中。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

func withOwnedPool(p *xbufpool.Pool) Option {
	return func(o *options) {
		o.pool = p
		o.ownsPool = true
	}
}
