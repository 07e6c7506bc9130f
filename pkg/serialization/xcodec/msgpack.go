package xcodec

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackSerializer 返回以 msgpack 编码 T 的 Serializer。
// 载荷以长度前缀字节串写入，map key 排序以保证编码确定。
//
// 适合没有手写 Serializer 的结构体值类型：字段通过 `msgpack` 标签控制。
func MsgpackSerializer[T any]() Serializer {
	name := "msgpack:" + reflect.TypeFor[T]().String()
	return NewSerializer(name,
		func(b *Buffer, v T) error {
			var bb bytes.Buffer
			enc := msgpack.NewEncoder(&bb)
			enc.SetSortMapKeys(true)
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrSerialization, name, err)
			}
			b.PutBytes(bb.Bytes())
			return nil
		},
		func(b *Buffer) (T, error) {
			var v T
			p, err := b.GetBytesView()
			if err != nil {
				return v, err
			}
			if err := msgpack.Unmarshal(p, &v); err != nil {
				return v, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
			}
			return v, nil
		})
}

// RegisterStruct 为类型 T 注册 msgpack Serializer。
func RegisterStruct[T any](c *Codec) (TypeID, error) {
	return Register[T](c, MsgpackSerializer[T]())
}
