package xbufpool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
)

// Stats 是池的计数快照。
type Stats struct {
	Acquired int64 // 累计借出次数
	Released int64 // 累计归还次数
	Dropped  int64 // 因容量超限被丢弃的 Buffer 数
	InUse    int64 // 当前借出数
	Size     int   // 有界模式的上限，弹性模式为 0
}

// Pool 是 Buffer 复用池。并发安全。
type Pool struct {
	opts options

	// 有界模式
	sem  *semaphore.Weighted
	idle chan *xcodec.Buffer

	// 弹性模式
	elastic sync.Pool

	closed    context.Context
	closeFn   context.CancelFunc
	closeOnce sync.Once

	acquired atomic.Int64
	released atomic.Int64
	dropped  atomic.Int64
}

// New 创建 Buffer 池。
func New(opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	p := &Pool{opts: o}
	p.closed, p.closeFn = context.WithCancel(context.Background())
	if o.size > 0 {
		p.sem = semaphore.NewWeighted(int64(o.size))
		p.idle = make(chan *xcodec.Buffer, o.size)
	} else {
		p.elastic.New = func() any { return xcodec.NewBuffer(o.bufferSize) }
	}
	return p, nil
}

// Bounded 报告池是否为有界模式。
func (p *Pool) Bounded() bool { return p.sem != nil }

// Acquire 借出一个已 Reset 的 Buffer。
// 有界模式下池耗尽时阻塞，直到有 Buffer 归还、ctx 结束（返回 ctx.Err()）
// 或池关闭（返回 [ErrClosed]）。
func (p *Pool) Acquire(ctx context.Context) (*xcodec.Buffer, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if p.closed.Err() != nil {
		return nil, ErrClosed
	}

	if !p.Bounded() {
		p.acquired.Add(1)
		return p.elastic.Get().(*xcodec.Buffer), nil
	}

	// 池关闭时取消等待中的 Acquire。
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.closed, cancel)
	defer stop()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if p.closed.Err() != nil {
			return nil, ErrClosed
		}
		return nil, ctx.Err()
	}
	p.acquired.Add(1)

	select {
	case buf := <-p.idle:
		return buf, nil
	default:
		return xcodec.NewBuffer(p.opts.bufferSize), nil
	}
}

// Release 归还 Buffer。buf 为 nil 时为空操作。
// 每次成功的 Acquire 必须恰好对应一次 Release；归还后调用方不得继续使用 buf。
func (p *Pool) Release(buf *xcodec.Buffer) {
	if buf == nil {
		return
	}
	p.released.Add(1)
	buf.Reset()

	retain := p.opts.maxRetainedSize <= 0 || buf.Cap() <= p.opts.maxRetainedSize
	if !retain {
		p.dropped.Add(1)
		p.opts.logger.Debug("xbufpool: oversized buffer dropped", "cap", buf.Cap())
	}

	if !p.Bounded() {
		if retain {
			p.elastic.Put(buf)
		}
		return
	}

	if retain {
		select {
		case p.idle <- buf:
		default:
		}
	}
	p.sem.Release(1)
}

// With 借出 Buffer 执行 fn，并在所有退出路径上归还。
// fn 内的 panic 会在归还后继续向上传播。
func (p *Pool) With(ctx context.Context, fn func(*xcodec.Buffer) error) error {
	buf, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(buf)
	return fn(buf)
}

// Stats 返回计数快照。各计数器独立读取，可能存在瞬时不一致。
func (p *Pool) Stats() Stats {
	acquired := p.acquired.Load()
	released := p.released.Load()
	return Stats{
		Acquired: acquired,
		Released: released,
		Dropped:  p.dropped.Load(),
		InUse:    acquired - released,
		Size:     p.opts.size,
	}
}

// Close 关闭池，之后的 Acquire 返回 [ErrClosed]，阻塞中的 Acquire 被唤醒。
// 已借出的 Buffer 仍可归还。Close 是幂等的。
func (p *Pool) Close() error {
	p.closeOnce.Do(p.closeFn)
	return nil
}
