package xbreaker

import "github.com/sony/gobreaker/v2"

// gobreaker 的类型别名，调用方无需直接导入 gobreaker。
type (
	// Counts 统计计数，用于熔断判定。
	Counts = gobreaker.Counts

	// State 熔断器状态。
	State = gobreaker.State
)

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

var (
	// ErrOpenState 熔断器处于打开状态。
	ErrOpenState = gobreaker.ErrOpenState

	// ErrTooManyRequests 半开状态下请求过多。
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)
