package xbufpool

import (
	"fmt"
	"log/slog"
)

const (
	defaultBufferSize      = 256
	defaultMaxRetainedSize = 1 << 20
)

// Option 定义 Pool 可选配置函数类型。
type Option func(*options)

type options struct {
	size            int
	bufferSize      int
	maxRetainedSize int
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		bufferSize:      defaultBufferSize,
		maxRetainedSize: defaultMaxRetainedSize,
		logger:          slog.Default(),
	}
}

// WithSize 设置最多同时借出的 Buffer 数量。
// n > 0 为有界模式；n == 0（默认）为弹性模式。负数使 New 返回错误。
func WithSize(n int) Option {
	return func(o *options) {
		o.size = n
	}
}

// WithBufferSize 设置新建 Buffer 的初始容量，默认 256 字节。
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithMaxRetainedSize 设置归还时保留的最大容量，超过的 Buffer 被丢弃。
// n <= 0 表示不限制。默认 1 MiB。
func WithMaxRetainedSize(n int) Option {
	return func(o *options) {
		o.maxRetainedSize = n
	}
}

// WithLogger 设置自定义日志记录器。
// 默认使用 slog.Default()。传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func (o *options) validate() error {
	if o.size < 0 {
		return fmt.Errorf("%w: pool size %d", ErrInvalidSize, o.size)
	}
	if o.bufferSize < 0 {
		return fmt.Errorf("%w: buffer size %d", ErrInvalidSize, o.bufferSize)
	}
	return nil
}
