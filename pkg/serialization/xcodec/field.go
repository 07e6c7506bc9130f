package xcodec

import (
	"fmt"
	"reflect"
)

// FieldKind 是字段的编码纪律。
type FieldKind uint8

const (
	// Fixed 字段的类型在 schema 中静态已知，只写存在标记和载荷。
	Fixed FieldKind = iota

	// Dynamic 字段写入类型标签，读取时按标签多态解码。
	Dynamic
)

// String 返回编码纪律名称。
func (k FieldKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("FieldKind(%d)", uint8(k))
	}
}

// Field 描述 schema 中的一个字段。
// Type 仅对 Fixed 字段有意义，Dynamic 字段忽略该值。
type Field struct {
	Name string
	Kind FieldKind
	Type reflect.Type
}

// FixedField 构造类型为 T 的 Fixed 字段。
func FixedField[T any](name string) Field {
	return Field{Name: name, Kind: Fixed, Type: reflect.TypeFor[T]()}
}

// DynamicField 构造 Dynamic 字段。
func DynamicField(name string) Field {
	return Field{Name: name, Kind: Dynamic}
}

// String 返回 "name:kind[:type]" 形式的描述。
func (f Field) String() string {
	if f.Kind == Fixed && f.Type != nil {
		return fmt.Sprintf("%s:%s:%s", f.Name, f.Kind, f.Type)
	}
	return fmt.Sprintf("%s:%s", f.Name, f.Kind)
}
