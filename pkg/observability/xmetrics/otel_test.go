package xmetrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestObserver(t *testing.T, opts ...Option) (Observer, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(append([]Option{WithMeterProvider(mp), WithTracerProvider(tp)}, opts...)...)
	require.NoError(t, err)
	return obs, reader, exp
}

// countWhere 汇总操作计数器中属性满足 match 的数据点。
func countWhere(t *testing.T, reader *sdkmetric.ManualReader, match map[string]string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != MetricOperations {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
		points:
			for _, dp := range sum.DataPoints {
				for k, want := range match {
					v, ok := dp.Attributes.Value(attribute.Key(k))
					if !ok || v.AsString() != want {
						continue points
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestNewOTelObserver_InvalidOptions(t *testing.T) {
	_, err := NewOTelObserver(nil)
	assert.ErrorIs(t, err, ErrNilOption)

	for _, bounds := range [][]float64{{0.1, 0.05}, {-1}, {}} {
		_, err = NewOTelObserver(WithDurationBuckets(bounds...))
		assert.ErrorIs(t, err, ErrInvalidBuckets, "%v", bounds)
	}
}

func TestOTelObserver_RecordsOutcomeAndStatus(t *testing.T) {
	obs, reader, exp := newTestObserver(t)
	op := Op{Component: "xcache", Name: "get", Cache: "users"}

	_, span := Start(context.Background(), obs, op)
	span.End(Result{Outcome: OutcomeHit})
	span.End(Result{Err: errors.New("ignored")})

	_, span = Start(context.Background(), obs, op)
	span.End(Result{Outcome: OutcomeMiss})

	_, span = Start(context.Background(), obs, op)
	span.End(Result{Err: errors.New("boom")})

	assert.Equal(t, int64(1), countWhere(t, reader, map[string]string{"outcome": "hit", "status": "ok"}))
	assert.Equal(t, int64(1), countWhere(t, reader, map[string]string{"outcome": "miss"}))
	assert.Equal(t, int64(1), countWhere(t, reader, map[string]string{"status": "error", "cache": "users"}))

	spans := exp.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "xcache.get", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[2].Status.Code)
	assert.Equal(t, "boom", spans[2].Status.Description)
}

func TestOTelObserver_RejectedIsNotAnError(t *testing.T) {
	obs, reader, exp := newTestObserver(t)
	_, span := Start(context.Background(), obs, Op{Component: "xcache", Name: "put"})
	span.End(Result{Status: StatusRejected, Err: errors.New("capacity exceeded")})

	assert.Equal(t, int64(1), countWhere(t, reader, map[string]string{"status": "rejected"}))
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	require.Len(t, spans[0].Events, 1) // RecordError 仍保留原因
}

func TestOTelObserver_RemoteKindAndSpanAttrs(t *testing.T) {
	obs, _, exp := newTestObserver(t)
	_, span := obs.Start(context.Background(), Op{
		Component: "xstore",
		Name:      "put",
		Kind:      KindRemote,
		Attrs:     []attribute.KeyValue{attribute.Int("bytes", 40)},
	})
	span.End(Result{Attrs: []attribute.KeyValue{attribute.Int("count", 2)}})

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	keys := map[attribute.Key]bool{}
	for _, kv := range spans[0].Attributes {
		keys[kv.Key] = true
	}
	assert.True(t, keys["bytes"])
	assert.True(t, keys["count"])
}

func TestOTelObserver_DefaultsUnknownNames(t *testing.T) {
	obs, _, exp := newTestObserver(t)
	_, span := obs.Start(nil, Op{}) //nolint:staticcheck // nil ctx
	span.End(Result{Status: StatusError})

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unknown.unknown", spans[0].Name)
	assert.Equal(t, "operation failed", spans[0].Status.Description)
}

func TestStart_NilObserver(t *testing.T) {
	ctx, span := Start(nil, nil, Op{}) //nolint:staticcheck // nil ctx
	assert.NotNil(t, ctx)
	assert.Equal(t, NoopSpan{}, span)
}

func TestOutcomeAndKind(t *testing.T) {
	assert.Equal(t, OutcomeHit, OutcomeOf(true))
	assert.Equal(t, OutcomeMiss, OutcomeOf(false))
	assert.Equal(t, "local", KindLocal.String())
	assert.Equal(t, "remote", KindRemote.String())
}
