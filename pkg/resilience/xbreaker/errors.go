package xbreaker

import (
	"errors"
	"fmt"
)

// BreakerError 包装熔断器拒绝调用时的错误（ErrOpenState、ErrTooManyRequests）。
//
// 设计决策: 状态由错误类型推导，而不是在 Execute 返回后再查询 State()，
// 后者可能已被其他 goroutine 改变。
type BreakerError struct {
	Err   error  // ErrOpenState 或 ErrTooManyRequests
	Name  string // 熔断器名称
	State State  // 拒绝时的状态
}

// Error 实现 error 接口。
func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

// Unwrap 返回原始 gobreaker 错误。
func (e *BreakerError) Unwrap() error {
	return e.Err
}

// wrapBreakerError 只包装本熔断器直接返回的哨兵错误。
// 调用链内层已有的 BreakerError 保持原样，避免把内层拒绝归到外层。
func wrapBreakerError(err error, name string) error {
	if err == nil {
		return nil
	}
	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}
	switch err {
	case ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	}
	return err
}

// IsOpen 判断 err 是否为熔断打开导致的拒绝。
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenState)
}

// IsBreakerError 判断 err 是否为熔断器拒绝（打开或半开请求过多）。
func IsBreakerError(err error) bool {
	return errors.Is(err, ErrOpenState) || errors.Is(err, ErrTooManyRequests)
}
