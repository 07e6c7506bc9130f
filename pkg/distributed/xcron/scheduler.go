package xcron

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// JobID 标识一个已注册的任务。
type JobID = cron.EntryID

// Stats 是调度器全部任务的执行计数。
type Stats struct {
	Runs     int64 // 开始执行的次数
	Failures int64 // 返回错误的次数
	Panics   int64 // panic 次数
	Skipped  int64 // 因上一次执行未结束而跳过的次数
}

// Scheduler 是定时任务调度器。并发安全。
type Scheduler struct {
	cron   *cron.Cron
	parser cron.ScheduleParser
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool

	runs     atomic.Int64
	failures atomic.Int64
	panics   atomic.Int64
	skipped  atomic.Int64
}

// New 创建调度器。调用 Start 之后任务才会被触发。
func New(opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(o.location), cron.WithParser(o.parser)),
		parser: o.parser,
		logger: o.logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// AddFunc 按 spec 注册任务。name 只用于日志。
func (s *Scheduler) AddFunc(spec, name string, fn func(ctx context.Context) error) (JobID, error) {
	if fn == nil {
		return 0, ErrNilJob
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidSpec, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, ErrStopped
	}
	return s.cron.Schedule(sched, &job{s: s, name: name, fn: fn}), nil
}

// Remove 注销任务。执行中的那一次不受影响。
func (s *Scheduler) Remove(id JobID) {
	s.cron.Remove(id)
}

// Start 在后台开始调度。重复调用无效果。
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.cron.Start()
	}
}

// Stop 停止调度，取消任务的 ctx 并等待执行中的任务结束。
// ctx 先结束时返回 ctx.Err()，任务仍会在后台结束。Stop 是幂等的。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	first := !s.stopped
	s.stopped = true
	s.mu.Unlock()

	if first {
		s.cancel()
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 返回执行计数快照。
func (s *Scheduler) Stats() Stats {
	return Stats{
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Panics:   s.panics.Load(),
		Skipped:  s.skipped.Load(),
	}
}

// =============================================================================
// 任务包装
// =============================================================================

type job struct {
	s       *Scheduler
	name    string
	fn      func(ctx context.Context) error
	running atomic.Bool
}

// Run 实现 cron.Job。
func (j *job) Run() {
	if !j.running.CompareAndSwap(false, true) {
		j.s.skipped.Add(1)
		j.s.logger.Debug("xcron: job still running, skipped", "job", j.name)
		return
	}
	defer j.running.Store(false)

	j.s.runs.Add(1)
	if err := j.call(); err != nil {
		j.s.failures.Add(1)
		j.s.logger.Warn("xcron: job failed", "job", j.name, "error", err)
	}
}

func (j *job) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.s.panics.Add(1)
			j.s.logger.Error("xcron: job panicked", "job", j.name, "panic", r, "stack", string(debug.Stack()))
			err = nil
		}
	}()
	return j.fn(j.s.ctx)
}
