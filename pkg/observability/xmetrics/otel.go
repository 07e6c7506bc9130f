package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xgrid/xmetrics"
	unknown                    = "unknown"

	// MetricOperations 是操作次数计数器的名称。
	MetricOperations = "xgrid.cache.operations"
	// MetricDuration 是操作耗时直方图（秒）的名称。
	MetricDuration = "xgrid.cache.operation.duration"
)

// 缓存操作多为微秒级，默认桶边界从 1µs 起。
var defaultBuckets = []float64{1e-6, 5e-6, 25e-6, 1e-4, 5e-4, 25e-4, 0.01, 0.05, 0.25, 1}

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
	buckets             []float64
}

// Option 配置 OpenTelemetry Observer。
type Option func(*otelConfig)

// WithInstrumentationName 设置 instrumentation 名称。空字符串被忽略。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，默认 otel.GetTracerProvider()。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认 otel.GetMeterProvider()。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithDurationBuckets 覆盖耗时直方图的桶边界（秒），必须是严格递增的正数。
func WithDurationBuckets(bounds ...float64) Option {
	return func(cfg *otelConfig) {
		cfg.buckets = bounds
	}
}

func validateBuckets(bounds []float64) error {
	if len(bounds) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidBuckets)
	}
	for i, b := range bounds {
		if b <= 0 || (i > 0 && b <= bounds[i-1]) {
			return fmt.Errorf("%w: %v", ErrInvalidBuckets, bounds)
		}
	}
	return nil
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
// 每次操作产生一个 span，并在 MetricOperations / MetricDuration 上记录一次，
// 指标属性为 component、operation、cache、status，读操作另有 outcome。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
		buckets:             defaultBuckets,
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(cfg)
	}
	if err := validateBuckets(cfg.buckets); err != nil {
		return nil, err
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	ops, err := meter.Int64Counter(MetricOperations,
		metric.WithDescription("cache operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("cache operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cfg.buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}

	return &otelObserver{
		tracer:   cfg.tracerProvider.Tracer(cfg.instrumentationName),
		ops:      ops,
		duration: duration,
	}, nil
}

type otelObserver struct {
	tracer   trace.Tracer
	ops      metric.Int64Counter
	duration metric.Float64Histogram
}

func (o *otelObserver) Start(ctx context.Context, op Op) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	op.Component = orUnknown(op.Component)
	op.Name = orUnknown(op.Name)

	base := []attribute.KeyValue{
		attribute.String("component", op.Component),
		attribute.String("operation", op.Name),
	}
	if op.Cache != "" {
		base = append(base, attribute.String("cache", op.Cache))
	}

	spanAttrs := append(append([]attribute.KeyValue{}, base...), op.Attrs...)
	ctx, span := o.tracer.Start(ctx, op.Component+"."+op.Name,
		trace.WithSpanKind(spanKind(op.Kind)),
		trace.WithAttributes(spanAttrs...),
	)
	return ctx, &otelSpan{
		observer: o,
		span:     span,
		ctx:      ctx,
		base:     base,
		start:    time.Now(),
	}
}

type otelSpan struct {
	observer *otelObserver
	span     trace.Span
	ctx      context.Context
	base     []attribute.KeyValue
	start    time.Time
	once     sync.Once
}

func (s *otelSpan) End(r Result) {
	s.once.Do(func() { s.end(r) })
}

func (s *otelSpan) end(r Result) {
	elapsed := time.Since(s.start)
	status := r.status()

	if r.Err != nil {
		s.span.RecordError(r.Err)
	}
	if status == StatusError {
		msg := "operation failed"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		s.span.SetStatus(codes.Error, msg)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	attrs := make([]attribute.KeyValue, 0, len(s.base)+2)
	attrs = append(attrs, s.base...)
	attrs = append(attrs, attribute.String("status", string(status)))
	if r.Outcome != OutcomeNone {
		attrs = append(attrs, attribute.String("outcome", string(r.Outcome)))
		s.span.SetAttributes(attribute.String("outcome", string(r.Outcome)))
	}
	if len(r.Attrs) > 0 {
		s.span.SetAttributes(r.Attrs...)
	}
	s.span.End()

	// 调用方 ctx 已取消时仍需记录指标。
	ctx := context.WithoutCancel(s.ctx)
	set := metric.WithAttributeSet(attribute.NewSet(attrs...))
	s.observer.ops.Add(ctx, 1, set)
	s.observer.duration.Record(ctx, elapsed.Seconds(), set)
}

func spanKind(k Kind) trace.SpanKind {
	if k == KindRemote {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
