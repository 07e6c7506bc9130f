// Package xlog 构建 xgrid 各组件使用的 *slog.Logger。
//
// 使用 Builder 模式配置输出目标、级别、格式与文件轮转，遇到第一个配置错误后
// 后续 Set 操作被跳过（first-error-wins），错误在 [Builder.Build] 时返回：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xgrid/xgrid.log", xlog.Rotation{MaxSizeMB: 64}).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// Build 返回标准库的 *slog.Logger，可直接传给各包的 WithLogger 选项。
// 级别由 [Builder.LevelVar] 返回的 *slog.LevelVar 控制，运行时修改立即生效。
//
// 默认启用 trace 注入：ctx 中存在有效的 OpenTelemetry span 时，
// 日志记录附带 trace_id 与 span_id。
package xlog
