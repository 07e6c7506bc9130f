package xcron

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Option 定义调度器配置函数类型。
type Option func(*options)

type options struct {
	logger   *slog.Logger
	location *time.Location
	parser   cron.ScheduleParser
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		location: time.Local,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// WithLogger 设置日志记录器。默认使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocation 设置解释调度表达式的时区。默认 time.Local。
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeconds 启用带秒字段的六段表达式，如 "*/5 * * * * *"。
func WithSeconds() Option {
	return func(o *options) {
		o.parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
}
