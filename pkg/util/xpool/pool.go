package xpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

const (
	maxWorkers   = 1 << 16
	maxQueueSize = 1 << 24
)

// Pool 是泛型 worker pool。并发安全。
type Pool[T any] struct {
	handler func(T)
	queue   chan T
	workers int
	logger  *slog.Logger

	// mu 保护 stopped 与 queue 的关闭，避免 Submit 向已关闭的通道发送。
	mu      sync.RWMutex
	stopped bool

	wg   sync.WaitGroup
	done chan struct{}

	panics atomic.Int64
}

var _ io.Closer = (*Pool[int])(nil)

// New 创建并启动 pool。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 || workers > maxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}
	if queueSize < 1 || queueSize > maxQueueSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueSize, queueSize)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if o.name != "" {
		logger = logger.With("pool", o.name)
	}
	p := &Pool[T]{
		handler: handler,
		queue:   make(chan T, queueSize),
		workers: workers,
		logger:  logger,
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool[T]) run(task T) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("xpool: handler panic recovered",
				"panic", r,
				"task_type", fmt.Sprintf("%T", task),
				"stack", string(debug.Stack()))
		}
	}()
	p.handler(task)
}

// Submit 非阻塞地提交任务。
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 停止接收任务并等待队列排空。幂等。
func (p *Pool[T]) Close() error {
	return p.Shutdown(context.Background())
}

// Shutdown 停止接收任务并等待队列排空，ctx 结束时返回 ctx.Err()。
// 提前返回后 worker 仍会处理剩余任务，完成后 [Pool.Done] 关闭。
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 返回在所有 worker 退出后关闭的通道。
func (p *Pool[T]) Done() <-chan struct{} { return p.done }

// Workers 返回 worker 数量。
func (p *Pool[T]) Workers() int { return p.workers }

// QueueSize 返回队列容量。
func (p *Pool[T]) QueueSize() int { return cap(p.queue) }

// Pending 返回队列中尚未被取走的任务数。
func (p *Pool[T]) Pending() int { return len(p.queue) }

// Panics 返回累计恢复的 handler panic 次数。
func (p *Pool[T]) Panics() int64 { return p.panics.Load() }
