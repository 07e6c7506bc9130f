package xpool

import "errors"

var (
	// ErrNilHandler 表示 handler 为 nil。
	ErrNilHandler = errors.New("xpool: nil handler")

	// ErrPoolStopped 表示 pool 已关闭，不再接受任务。
	ErrPoolStopped = errors.New("xpool: pool stopped")

	// ErrQueueFull 表示任务队列已满。
	ErrQueueFull = errors.New("xpool: queue full")

	// ErrInvalidWorkers 表示 worker 数量超出 [1, 65536]。
	ErrInvalidWorkers = errors.New("xpool: invalid worker count")

	// ErrInvalidQueueSize 表示队列大小超出 [1, 16777216]。
	ErrInvalidQueueSize = errors.New("xpool: invalid queue size")

	// ErrNilContext 表示 Shutdown 收到 nil ctx。
	ErrNilContext = errors.New("xpool: nil context")
)
