package xlog

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Builder 日志配置构建器。一次性使用：Build 之后不可复用。
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    Format
	addSource bool
	trace     bool
	attrs     []slog.Attr
	rotator   *lumberjack.Logger
	err       error
}

// New 创建构建器：stderr、info 级别、text 格式、启用 trace 注入。
func New() *Builder {
	return &Builder{
		output:   os.Stderr,
		levelVar: new(slog.LevelVar),
		format:   FormatText,
		trace:    true,
	}
}

// SetOutput 设置输出目标。
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = ErrNilOutput
		return b
	}
	b.output = w
	b.rotator = nil
	return b
}

// SetLevel 设置日志级别。
func (b *Builder) SetLevel(level slog.Level) *Builder {
	if b.err == nil {
		b.levelVar.Set(level)
	}
	return b
}

// SetLevelString 按名称设置日志级别，见 [ParseLevel]。
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空字符串视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	f, err := ParseFormat(format)
	if err != nil {
		b.err = err
		return b
	}
	b.format = f
	return b
}

// SetAddSource 是否在日志中添加源码位置。
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetTrace 是否从 ctx 注入 trace_id 与 span_id，默认启用。
func (b *Builder) SetTrace(enable bool) *Builder {
	b.trace = enable
	return b
}

// SetAttrs 设置附加到每条日志的固定属性，例如服务名。
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetRotation 把输出切换为按大小轮转的文件。
func (b *Builder) SetRotation(filename string, r Rotation) *Builder {
	if b.err != nil {
		return b
	}
	rotator, err := newRotator(filename, r)
	if err != nil {
		b.err = err
		return b
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// LevelVar 返回控制级别的变量，Build 之后修改仍然生效。
func (b *Builder) LevelVar() *slog.LevelVar { return b.levelVar }

// Build 构建 Logger。
//
// 返回值：
//   - *slog.Logger: 日志实例
//   - func() error: 清理函数，关闭轮转文件；幂等
//   - error: 第一个配置错误
func (b *Builder) Build() (*slog.Logger, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{Level: b.levelVar, AddSource: b.addSource}
	var handler slog.Handler
	if b.format == FormatJSON {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}
	if b.trace {
		th, err := NewTraceHandler(handler)
		if err != nil {
			return nil, nil, err
		}
		handler = th
	}

	return slog.New(handler), b.cleanup(), nil
}

func (b *Builder) cleanup() func() error {
	rotator := b.rotator
	return sync.OnceValue(func() error {
		if rotator == nil {
			return nil
		}
		if err := rotator.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
		return nil
	})
}
