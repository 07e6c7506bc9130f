// Package xmetrics 定义缓存组件共用的观测接口（metrics + tracing）。
//
// 组件只依赖 [Observer] 与 [Span]；[NewOTelObserver] 提供 OpenTelemetry 实现，
// 未注入时使用 [NoopObserver]。
//
//	obs, _ := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.Op{Component: "xcache", Name: "get", Cache: "users"})
//	defer func() { span.End(xmetrics.Result{Err: err, Outcome: xmetrics.OutcomeOf(hit)}) }()
//
// # 指标
//
//   - xgrid.cache.operations：操作次数
//   - xgrid.cache.operation.duration：操作耗时（秒）
//
// 两者的属性为 component、operation、cache、status（ok/error/rejected），
// 读操作另有 outcome（hit/miss）。Op.Attrs 与 Result.Attrs 只写入 span，不进入指标，
// 以免产生高基数的时间序列。
package xmetrics
