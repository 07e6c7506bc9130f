package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLevel 解析级别名称：debug/info/warn/warning/error，大小写不敏感，
// 忽略首尾空白。空字符串视为 info。
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// Format 是日志输出格式。
type Format string

// 支持的输出格式。
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat 解析格式名称，空字符串视为 text。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}
