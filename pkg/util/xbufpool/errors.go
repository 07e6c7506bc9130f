package xbufpool

import "errors"

var (
	// ErrClosed 表示池已关闭。
	ErrClosed = errors.New("xbufpool: pool is closed")

	// ErrNilContext 表示 context 参数为 nil。
	ErrNilContext = errors.New("xbufpool: nil context")

	// ErrInvalidSize 表示池大小或 Buffer 尺寸参数无效。
	ErrInvalidSize = errors.New("xbufpool: invalid size")
)
