package xbreaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Option 熔断器配置选项。
type Option func(*Breaker)

// WithTripPolicy 设置熔断判定策略。默认连续失败 5 次熔断。
func WithTripPolicy(p TripPolicy) Option {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithSuccessPolicy 设置成功判定策略。
func WithSuccessPolicy(p SuccessPolicy) Option {
	return func(b *Breaker) {
		b.successPolicy = p
	}
}

// WithTimeout 设置 Open 转为 HalfOpen 的等待时间。默认 60s。
func WithTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下清零统计的周期。默认 0，不清零。
func WithInterval(d time.Duration) Option {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests 设置 HalfOpen 状态允许通过的请求数。默认 1。
func WithMaxRequests(n uint32) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调，在日志记录之后调用。
func WithOnStateChange(f func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// WithLogger 设置记录状态变化的日志记录器。默认使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// =============================================================================
// 熔断器
// =============================================================================

// Breaker 封装 gobreaker 熔断器。并发安全。
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	successPolicy SuccessPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)
	logger        *slog.Logger

	cb *gobreaker.CircuitBreaker[any]
}

// NewBreaker 创建熔断器。name 用于日志与错误信息。
func NewBreaker(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     60 * time.Second,
		maxRequests: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cb = gobreaker.NewCircuitBreaker[any](b.settings())
	return b
}

func (b *Breaker) settings() gobreaker.Settings {
	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: b.tripPolicy.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelInfo
			if to == StateOpen {
				level = slog.LevelWarn
			}
			b.logger.Log(context.Background(), level, "xbreaker: state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			if b.onStateChange != nil {
				b.onStateChange(name, from, to)
			}
		},
	}
	if b.successPolicy != nil {
		st.IsSuccessful = b.successPolicy.IsSuccessful
	}
	return st
}

// Do 在熔断保护下执行 fn。
//
// ctx 已结束时直接返回 ctx.Err()，不计入统计；ctx 不会传给 fn。
// 熔断拒绝时 fn 不会执行，返回 [*BreakerError]。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapBreakerError(err, b.name)
}

// Name 返回熔断器名称。
func (b *Breaker) Name() string { return b.name }

// State 返回当前状态。
func (b *Breaker) State() State { return b.cb.State() }

// Counts 返回当前统计计数。
func (b *Breaker) Counts() Counts { return b.cb.Counts() }
