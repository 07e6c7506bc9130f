package xentry

import (
	"bytes"
	"fmt"

	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
)

// Serializer 按 [EntrySchema] 编解码 [Entry]。并发安全。
type Serializer struct {
	codec  *xcodec.Codec
	schema Schema
}

// NewSerializer 创建基于 codec 的条目编解码器。
func NewSerializer(codec *xcodec.Codec) (*Serializer, error) {
	if codec == nil {
		return nil, ErrNilCodec
	}
	return &Serializer{codec: codec, schema: EntrySchema}, nil
}

// Codec 返回底层类型注册表。
func (s *Serializer) Codec() *xcodec.Codec { return s.codec }

// Schema 返回条目 schema。
func (s *Serializer) Schema() Schema { return s.schema }

// =============================================================================
// 编码
// =============================================================================

// Encode 把 e 追加写入 buf。
func (s *Serializer) Encode(buf *xcodec.Buffer, e Entry) error {
	if buf == nil {
		return ErrNilBuffer
	}
	for i := range s.schema.Len() {
		if err := s.codec.WriteField(buf, s.schema.Field(i), e.field(i)); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBytes 把 e 编码到新分配的字节切片。
func (s *Serializer) EncodeBytes(e Entry) ([]byte, error) {
	buf := xcodec.NewBuffer(64)
	if err := s.Encode(buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeKey 把 key 按记录首字段的规则追加写入 buf。
func (s *Serializer) EncodeKey(buf *xcodec.Buffer, key any) error {
	if buf == nil {
		return ErrNilBuffer
	}
	return s.codec.WriteField(buf, s.schema.Field(FieldKey), key)
}

// KeyBytes 返回 key 的 Dynamic 编码，即记录首字段的字节。
// 相同的 key 总是得到相同的字节，可直接作为存储层的标识。
func (s *Serializer) KeyBytes(key any) ([]byte, error) {
	buf := xcodec.NewBuffer(32)
	if err := s.EncodeKey(buf, key); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// 解码
// =============================================================================

// Decode 从记录起点解码完整条目。返回前恢复 buf 的 position/limit。
func (s *Serializer) Decode(buf *xcodec.Buffer) (Entry, error) {
	if buf == nil {
		return Entry{}, ErrNilBuffer
	}
	saved := buf.Save()
	defer buf.Restore(saved)
	buf.Clear()

	var e Entry
	for i := range s.schema.Len() {
		v, err := s.codec.ReadField(buf, s.schema.Field(i))
		if err != nil {
			return Entry{}, err
		}
		switch i {
		case FieldKey:
			e.Key = v
		case FieldVersion:
			if v != nil {
				e = e.WithVersion(v.(int32))
			}
		case FieldRouting:
			e.Routing = v
		case FieldValue:
			e.Value = v
		}
	}
	if n := buf.Remaining(); n > 0 {
		return Entry{}, fmt.Errorf("%w: %d trailing bytes after record", xcodec.ErrCorrupt, n)
	}
	return e, nil
}

// DecodeID 只解码 key 字段。返回前恢复 buf 的 position/limit。
func (s *Serializer) DecodeID(buf *xcodec.Buffer) (any, error) {
	if buf == nil {
		return nil, ErrNilBuffer
	}
	saved := buf.Save()
	defer buf.Restore(saved)
	buf.Clear()

	return s.codec.ReadField(buf, s.schema.Field(FieldKey))
}

// Matches 判断记录是否匹配模板：模板中每个非 nil 字段的编码都必须与
// 记录对应字段的字节完全相同。顶层为 float32/float64 的模板字段例外，
// 按解码后的值用 == 比较，因此 -0.0 与 0.0 相等、NaN 不等于任何值；
// 嵌套在 slice/map/结构体中的浮点数仍按编码字节比较。
// 遇到第一个不匹配的字段立即返回 false，最后一个非 nil 模板字段之后的
// 记录字段不会被读取。返回前恢复 buf 的 position/limit。
func (s *Serializer) Matches(buf *xcodec.Buffer, template Entry) (bool, error) {
	if buf == nil {
		return false, ErrNilBuffer
	}

	last := -1
	for i := range s.schema.Len() {
		if template.field(i) != nil {
			last = i
		}
	}
	if last < 0 {
		return true, nil
	}

	saved := buf.Save()
	defer buf.Restore(saved)
	buf.Clear()

	scratch := xcodec.NewBuffer(32)
	for i := 0; i <= last; i++ {
		f := s.schema.Field(i)
		start, end, err := s.codec.SkipField(buf, f)
		if err != nil {
			return false, err
		}
		want := template.field(i)
		if want == nil {
			continue
		}

		if isFloat(want) {
			eq, err := s.valueEqual(buf, f, start, want)
			if err != nil || !eq {
				return false, err
			}
			continue
		}

		scratch.Reset()
		if err := s.codec.WriteField(scratch, f, want); err != nil {
			return false, fmt.Errorf("template %w", err)
		}
		if !bytes.Equal(buf.Bytes()[start:end], scratch.Bytes()) {
			return false, nil
		}
	}
	return true, nil
}

// valueEqual 重新解码 [start, 当前位置) 处的字段并与 want 按值比较。
func (s *Serializer) valueEqual(buf *xcodec.Buffer, f xcodec.Field, start int, want any) (bool, error) {
	end := buf.Position()
	if err := buf.SetPosition(start); err != nil {
		return false, err
	}
	got, err := s.codec.ReadField(buf, f)
	if err != nil {
		return false, err
	}
	if err := buf.SetPosition(end); err != nil {
		return false, err
	}
	return got == want, nil
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}
