package xcodec

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Serializer 定义单一类型的编解码实现。
// 实现必须是并发安全的（通常是无状态的）。
type Serializer interface {
	// Write 把 v 的载荷写入 buf，不写类型标签。
	Write(buf *Buffer, v any) error

	// Read 从 buf 的 position 处读取一个载荷。
	Read(buf *Buffer) (any, error)

	// Name 返回用于调试枚举的名称。
	Name() string
}

// funcSerializer 用一对类型化函数实现 Serializer。
type funcSerializer[T any] struct {
	name  string
	write func(*Buffer, T) error
	read  func(*Buffer) (T, error)
}

// NewSerializer 用类型化的 write/read 函数构造 Serializer。
// Write 收到非 T 类型的值时返回 [ErrTypeMismatch]。
func NewSerializer[T any](name string, write func(*Buffer, T) error, read func(*Buffer) (T, error)) Serializer {
	return funcSerializer[T]{name: name, write: write, read: read}
}

func (s funcSerializer[T]) Write(buf *Buffer, v any) error {
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: %s cannot write %T", ErrTypeMismatch, s.name, v)
	}
	return s.write(buf, t)
}

func (s funcSerializer[T]) Read(buf *Buffer) (any, error) {
	v, err := s.read(buf)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s funcSerializer[T]) Name() string { return s.name }

func (s funcSerializer[T]) String() string { return s.name }

// =============================================================================
// 内置类型
// =============================================================================

// 内置类型的稳定 TypeID。0 保留给 null 标记。
const (
	TypeNull TypeID = iota
	TypeBool
	TypeInt
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
	TypeTime
	TypeDuration
	TypeStrings
	TypeSlice
	TypeMap
)

// FirstUserTypeID 是用户注册类型的起始 TypeID，之前的区间保留给内置类型。
const FirstUserTypeID TypeID = 64

func signed[T ~int | ~int8 | ~int16 | ~int32 | ~int64](name string, lo, hi int64) Serializer {
	return NewSerializer(name,
		func(b *Buffer, v T) error {
			b.PutVarint(int64(v))
			return nil
		},
		func(b *Buffer) (T, error) {
			v, err := b.GetVarint()
			if err != nil {
				return 0, err
			}
			if v < lo || v > hi {
				return 0, fmt.Errorf("%w: %s out of range: %d", ErrCorrupt, name, v)
			}
			return T(v), nil
		})
}

func unsigned[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](name string, hi uint64) Serializer {
	return NewSerializer(name,
		func(b *Buffer, v T) error {
			b.PutUvarint(uint64(v))
			return nil
		},
		func(b *Buffer) (T, error) {
			v, err := b.GetUvarint()
			if err != nil {
				return 0, err
			}
			if v > hi {
				return 0, fmt.Errorf("%w: %s out of range: %d", ErrCorrupt, name, v)
			}
			return T(v), nil
		})
}

var (
	boolSerializer = NewSerializer("bool",
		func(b *Buffer, v bool) error {
			if v {
				b.PutByte(1)
			} else {
				b.PutByte(0)
			}
			return nil
		},
		func(b *Buffer) (bool, error) {
			c, err := b.GetByte()
			if err != nil {
				return false, err
			}
			switch c {
			case 0:
				return false, nil
			case 1:
				return true, nil
			default:
				return false, fmt.Errorf("%w: bool marker %d", ErrCorrupt, c)
			}
		})

	float32Serializer = NewSerializer("float32",
		func(b *Buffer, v float32) error {
			b.PutFixed32(math.Float32bits(v))
			return nil
		},
		func(b *Buffer) (float32, error) {
			v, err := b.GetFixed32()
			return math.Float32frombits(v), err
		})

	float64Serializer = NewSerializer("float64",
		func(b *Buffer, v float64) error {
			b.PutFixed64(math.Float64bits(v))
			return nil
		},
		func(b *Buffer) (float64, error) {
			v, err := b.GetFixed64()
			return math.Float64frombits(v), err
		})

	stringSerializer = NewSerializer("string",
		func(b *Buffer, v string) error {
			b.PutString(v)
			return nil
		},
		(*Buffer).GetString)

	bytesSerializer = NewSerializer("[]byte",
		func(b *Buffer, v []byte) error {
			b.PutBytes(v)
			return nil
		},
		(*Buffer).GetBytes)

	timeSerializer = NewSerializer("time.Time",
		func(b *Buffer, v time.Time) error {
			p, err := v.MarshalBinary()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrSerialization, err)
			}
			b.PutBytes(p)
			return nil
		},
		func(b *Buffer) (time.Time, error) {
			var t time.Time
			p, err := b.GetBytesView()
			if err != nil {
				return t, err
			}
			if err := t.UnmarshalBinary(p); err != nil {
				return t, fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
			return t, nil
		})

	durationSerializer = signed[time.Duration]("time.Duration", math.MinInt64, math.MaxInt64)

	stringsSerializer = NewSerializer("[]string",
		func(b *Buffer, v []string) error {
			b.PutUvarint(uint64(len(v)))
			for _, s := range v {
				b.PutString(s)
			}
			return nil
		},
		func(b *Buffer) ([]string, error) {
			n, err := readCount(b, 1)
			if err != nil {
				return nil, err
			}
			out := make([]string, n)
			for i := range out {
				if out[i], err = b.GetString(); err != nil {
					return nil, err
				}
			}
			return out, nil
		})
)

// readCount 读取集合长度，并按每个元素至少 minElem 字节校验剩余空间，
// 防止损坏数据触发超大分配。
func readCount(b *Buffer, minElem int) (int, error) {
	n, err := b.GetUvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(b.Remaining()/minElem) {
		return 0, fmt.Errorf("%w: collection length %d exceeds remaining %d", ErrCorrupt, n, b.Remaining())
	}
	return int(n), nil
}

// sliceSerializer 编码 []any，元素按 Dynamic 规则逐个写入。
func sliceSerializer(c *Codec) Serializer {
	return NewSerializer("[]any",
		func(b *Buffer, v []any) error {
			b.PutUvarint(uint64(len(v)))
			for _, e := range v {
				if err := c.WriteDynamic(b, e); err != nil {
					return err
				}
			}
			return nil
		},
		func(b *Buffer) ([]any, error) {
			n, err := readCount(b, 1)
			if err != nil {
				return nil, err
			}
			out := make([]any, n)
			for i := range out {
				if out[i], err = c.ReadDynamic(b); err != nil {
					return nil, err
				}
			}
			return out, nil
		})
}

// mapSerializer 编码 map[string]any。key 排序后写入，保证相同内容编码出相同字节。
func mapSerializer(c *Codec) Serializer {
	return NewSerializer("map[string]any",
		func(b *Buffer, v map[string]any) error {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			b.PutUvarint(uint64(len(keys)))
			for _, k := range keys {
				b.PutString(k)
				if err := c.WriteDynamic(b, v[k]); err != nil {
					return err
				}
			}
			return nil
		},
		func(b *Buffer) (map[string]any, error) {
			n, err := readCount(b, 2)
			if err != nil {
				return nil, err
			}
			out := make(map[string]any, n)
			for range n {
				k, err := b.GetString()
				if err != nil {
					return nil, err
				}
				if out[k], err = c.ReadDynamic(b); err != nil {
					return nil, err
				}
			}
			return out, nil
		})
}
