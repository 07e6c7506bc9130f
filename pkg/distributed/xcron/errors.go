package xcron

import "errors"

var (
	// ErrNilJob 表示任务函数为 nil。
	ErrNilJob = errors.New("xcron: job cannot be nil")

	// ErrInvalidSpec 表示调度表达式无法解析。
	ErrInvalidSpec = errors.New("xcron: invalid schedule spec")

	// ErrStopped 表示调度器已停止。
	ErrStopped = errors.New("xcron: scheduler stopped")
)
