// Package xbreaker 为远端存储调用提供熔断保护，基于 [sony/gobreaker/v2]。
//
// # 熔断器状态
//
//   - StateClosed：正常放行，失败被统计
//   - StateOpen：直接拒绝，返回 [ErrOpenState]
//   - StateHalfOpen：放行有限请求以判断下游是否恢复
//
// # 策略
//
// 何时熔断由 [TripPolicy] 决定，内置 [ConsecutiveFailuresPolicy] 与 [FailureRatioPolicy]。
// 何时算成功由 [SuccessPolicy] 决定，缓存场景通常把"未命中"视为成功，
// 可直接用 [SuccessFunc] 适配一个函数。
//
// 熔断拒绝的错误被包装为 [*BreakerError]，仍可用 errors.Is 匹配 gobreaker 的哨兵错误。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
