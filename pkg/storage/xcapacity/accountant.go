package xcapacity

import (
	"log/slog"
	"sync/atomic"
)

// Option 定义 Accountant 可选配置函数类型。
type Option func(*options)

type options struct {
	policy Policy // nil 表示默认的 RejectPolicy
	logger *slog.Logger
}

// WithPolicy 设置准入策略，默认 [RejectPolicy]。传入 nil 将被忽略。
func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithLogger 设置自定义日志记录器。默认使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Accountant 是容量记账器。所有方法并发安全，无需外部加锁。
type Accountant struct {
	memoryUsed atomic.Int64
	itemCount  atomic.Int64

	restriction Restriction
	policy      Policy
	custom      bool
	logger      *slog.Logger
}

// New 创建记账器。
func New(r Restriction, opts ...Option) *Accountant {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	a := &Accountant{
		restriction: r,
		policy:      RejectPolicy,
		logger:      o.logger,
	}
	if o.policy != nil {
		a.policy = o.policy
		a.custom = true
	}
	return a
}

// Add 记录一次写入。previousSize > 0 表示替换，否则表示新插入。
func (a *Accountant) Add(addedBytes, previousSize int64) {
	if previousSize > 0 {
		a.memoryUsed.Add(-previousSize)
	} else {
		a.itemCount.Add(1)
	}
	a.memoryUsed.Add(addedBytes)
}

// Remove 记录一次删除。freedBytes == 0 时为空操作。
func (a *Accountant) Remove(freedBytes int64) {
	if freedBytes > 0 {
		a.memoryUsed.Add(-freedBytes)
		a.itemCount.Add(-1)
	}
}

// Sub 一次性扣除一组记录的总用量，用于存储整体销毁时归还其全部记账。
func (a *Accountant) Sub(u Usage) {
	a.memoryUsed.Add(-u.MemoryUsed)
	a.itemCount.Add(-u.ItemCount)
}

// MemoryUsed 返回已用内存字节数。
func (a *Accountant) MemoryUsed() int64 { return a.memoryUsed.Load() }

// ItemCount 返回条目数。
func (a *Accountant) ItemCount() int64 { return a.itemCount.Load() }

// Usage 返回用量快照。两个计数器独立读取，可能瞬时不一致。
func (a *Accountant) Usage() Usage {
	return Usage{
		MemoryUsed: a.memoryUsed.Load(),
		ItemCount:  a.itemCount.Load(),
	}
}

// Restriction 返回容量上限配置。
func (a *Accountant) Restriction() Restriction { return a.restriction }

// EnsureCapacity 检查插入 candidateSize 字节的新记录能否被准入。
func (a *Accountant) EnsureCapacity(candidateSize int64, candidate any) error {
	return a.admit(Candidate{Size: candidateSize, Object: candidate})
}

// EnsureReplaceCapacity 检查用 addedBytes 字节的记录替换 previousSize 字节的
// 旧记录能否被准入。previousSize == 0 时等价于 EnsureCapacity。
func (a *Accountant) EnsureReplaceCapacity(addedBytes, previousSize int64, candidate any) error {
	return a.admit(Candidate{Size: addedBytes, PreviousSize: previousSize, Object: candidate})
}

// Fits 检查 candidateSize 字节的新记录在空存储中能否被准入。
// 返回错误表示即使清空全部已有记录也无法容纳它，淘汰前应先调用。
func (a *Accountant) Fits(candidateSize int64, candidate any) error {
	if a.restriction.Unlimited() && !a.custom {
		return nil
	}
	return a.policy.Admit(Usage{}, a.restriction, Candidate{Size: candidateSize, Object: candidate})
}

func (a *Accountant) admit(c Candidate) error {
	if a.restriction.Unlimited() && !a.custom {
		return nil
	}
	u := a.Usage()
	if err := a.policy.Admit(u, a.restriction, c); err != nil {
		a.logger.Debug("xcapacity: admission rejected",
			"size", c.Size, "previous_size", c.PreviousSize,
			"memory_used", u.MemoryUsed, "items", u.ItemCount, "error", err)
		return err
	}
	return nil
}
