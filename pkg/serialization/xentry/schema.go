package xentry

import (
	"slices"
	"strings"

	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
)

// Schema 是有序、不可变的字段描述列表。
type Schema struct {
	fields []xcodec.Field
}

// NewSchema 用给定字段创建 Schema，字段切片会被复制。
func NewSchema(fields ...xcodec.Field) Schema {
	return Schema{fields: slices.Clone(fields)}
}

// Len 返回字段数。
func (s Schema) Len() int { return len(s.fields) }

// Field 返回第 i 个字段。
func (s Schema) Field(i int) xcodec.Field { return s.fields[i] }

// Fields 返回字段列表的副本。
func (s Schema) Fields() []xcodec.Field { return slices.Clone(s.fields) }

// String 返回 "[f1 f2 ...]" 形式的描述。
func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// 条目字段在 schema 中的位置。
const (
	FieldKey = iota
	FieldVersion
	FieldRouting
	FieldValue
)

// EntrySchema 是缓存条目的四字段 schema。
var EntrySchema = NewSchema(
	xcodec.DynamicField("key"),
	xcodec.FixedField[int32]("version"),
	xcodec.DynamicField("routing"),
	xcodec.DynamicField("value"),
)
