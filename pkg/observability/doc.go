// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志构建器，基于 log/slog，支持文件轮转与 trace 注入
//   - xmetrics: 统一观测接口，基于 OpenTelemetry 的指标与追踪
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 各组件接收 *slog.Logger 与 xmetrics.Observer，不依赖全局状态
package observability
