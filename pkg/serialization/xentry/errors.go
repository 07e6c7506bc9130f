package xentry

import "errors"

var (
	// ErrNilCodec 表示创建 Serializer 时传入的 Codec 为 nil。
	ErrNilCodec = errors.New("xentry: nil codec")

	// ErrNilBuffer 表示传入的 Buffer 为 nil。
	ErrNilBuffer = errors.New("xentry: nil buffer")
)
