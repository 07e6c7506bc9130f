package xcapacity

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricMemoryUsed = "xgrid.capacity.memory_used"
	metricItems      = "xgrid.capacity.items"
)

// RegisterGauges 在 meter 上注册已用内存与条目数两个可观测 gauge。
// 返回的 Registration 用于注销回调。
func RegisterGauges(meter metric.Meter, a *Accountant, attrs ...attribute.KeyValue) (metric.Registration, error) {
	if a == nil {
		return nil, ErrNilAccountant
	}

	memory, err := meter.Int64ObservableGauge(
		metricMemoryUsed,
		metric.WithDescription("bytes used by live records"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcapacity: create memory gauge failed: %w", err)
	}

	items, err := meter.Int64ObservableGauge(
		metricItems,
		metric.WithDescription("number of live records"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcapacity: create items gauge failed: %w", err)
	}

	set := metric.WithAttributes(attrs...)
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		u := a.Usage()
		o.ObserveInt64(memory, u.MemoryUsed, set)
		o.ObserveInt64(items, u.ItemCount, set)
		return nil
	}, memory, items)
	if err != nil {
		return nil, fmt.Errorf("xcapacity: register callback failed: %w", err)
	}
	return reg, nil
}
