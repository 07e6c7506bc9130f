package xlog

import (
	"fmt"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation 是按大小轮转的文件输出配置，零值字段取默认值：
// 单文件 100MB，保留 7 个历史文件，保留 30 天。
type Rotation struct {
	MaxSizeMB  int  `koanf:"max_size_mb"`
	MaxBackups int  `koanf:"max_backups"`
	MaxAgeDays int  `koanf:"max_age_days"`
	Compress   bool `koanf:"compress"`
	LocalTime  bool `koanf:"local_time"`
}

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB == 0 {
		r.MaxSizeMB = defaultMaxSizeMB
	}
	if r.MaxBackups == 0 {
		r.MaxBackups = defaultMaxBackups
	}
	if r.MaxAgeDays == 0 {
		r.MaxAgeDays = defaultMaxAgeDays
	}
	return r
}

// newRotator 创建 lumberjack 输出。文件在第一次写入时才打开。
func newRotator(filename string, r Rotation) (*lumberjack.Logger, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	if r.MaxSizeMB < 0 || r.MaxBackups < 0 || r.MaxAgeDays < 0 {
		return nil, fmt.Errorf("%w: negative limit in %+v", ErrInvalidRotation, r)
	}
	r = r.withDefaults()
	return &lumberjack.Logger{
		Filename:   filepath.Clean(filename),
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
		LocalTime:  r.LocalTime,
	}, nil
}
