package xcodec

import (
	"errors"
	"fmt"
)

// ErrSerialization 是所有编解码失败的根错误。
// 类型无法解析或字节流结构损坏时返回的错误均包装此错误。
var ErrSerialization = errors.New("xcodec: serialization failure")

var (
	// ErrUnregisteredType 表示类型未注册。
	ErrUnregisteredType = fmt.Errorf("%w: unregistered type", ErrSerialization)

	// ErrUnknownTypeID 表示读取到注册表中不存在的 TypeID。
	ErrUnknownTypeID = fmt.Errorf("%w: unknown type id", ErrSerialization)

	// ErrTypeMismatch 表示值的运行时类型与 Serializer 或 Fixed 字段声明的类型不一致。
	ErrTypeMismatch = fmt.Errorf("%w: type mismatch", ErrSerialization)

	// ErrCorrupt 表示字节流结构损坏（非法的标记字节、长度溢出等）。
	ErrCorrupt = fmt.Errorf("%w: corrupt data", ErrSerialization)

	// ErrBufferUnderflow 表示读取越过了 limit。
	ErrBufferUnderflow = fmt.Errorf("%w: buffer underflow", ErrSerialization)
)

var (
	// ErrNilSerializer 表示注册时传入的 Serializer 为 nil。
	ErrNilSerializer = errors.New("xcodec: nil serializer")

	// ErrNilType 表示注册时传入的类型为 nil。
	ErrNilType = errors.New("xcodec: nil type")

	// ErrInvalidPosition 表示 SetPosition/SetLimit 的参数越界。
	ErrInvalidPosition = errors.New("xcodec: invalid position")
)
