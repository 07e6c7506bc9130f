package xmetrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Kind 区分本地操作与远端调用。
type Kind uint8

const (
	// KindLocal 表示进程内完成的操作，缓存引擎与堆外存储属于此类。
	KindLocal Kind = iota
	// KindRemote 表示需要访问远端的操作，如 Redis 存储。
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

// Status 是操作结果状态，作为指标属性写入。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	// StatusRejected 表示写入因容量限制被拒绝。
	// 它不是故障，单独计数便于与错误率区分。
	StatusRejected Status = "rejected"
)

// Outcome 是读操作的命中结果。写操作保持为空。
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeHit  Outcome = "hit"
	OutcomeMiss Outcome = "miss"
)

// OutcomeOf 把命中标志转换为 Outcome。
func OutcomeOf(hit bool) Outcome {
	if hit {
		return OutcomeHit
	}
	return OutcomeMiss
}

// Op 描述一次被观测的缓存操作。
type Op struct {
	Component string // 组件名，如 "xcache"
	Name      string // 操作名，如 "get"
	Cache     string // 缓存实例名，进入指标属性，必须是低基数的
	Kind      Kind
	Attrs     []attribute.KeyValue // 只写入 trace span
}

// Result 是操作结束时上报的结果。
type Result struct {
	// Status 为空时由 Err 推导：nil 为 StatusOK，否则为 StatusError。
	Status  Status
	Err     error
	Outcome Outcome
	Attrs   []attribute.KeyValue // 只写入 trace span
}

func (r Result) status() Status {
	switch {
	case r.Status != "":
		return r.Status
	case r.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}

// Span 是一次进行中的观测，End 只生效一次。
type Span interface {
	End(result Result)
}

// Observer 开始对缓存操作的观测。
type Observer interface {
	Start(ctx context.Context, op Op) (context.Context, Span)
}

// NoopObserver 不做任何记录。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ Op) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是 NoopObserver 返回的跨度。
type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start 用 observer 开始观测，返回的 ctx 与 Span 总是非 nil。
// observer 为 nil 时等同 NoopObserver。
func Start(ctx context.Context, observer Observer, op Op) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	next, span := observer.Start(ctx, op)
	if next == nil {
		next = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return next, span
}
