package xcodec

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"
)

// TypeID 是注册类型的稳定标识，以 uvarint 形式写入 Dynamic 字段的类型标签。
type TypeID uint32

// Registration 描述一条类型 → Serializer 绑定。
type Registration struct {
	ID         TypeID
	Type       reflect.Type
	Serializer Serializer
}

// String 返回 "id type -> serializer" 形式的调试描述。
func (r Registration) String() string {
	return fmt.Sprintf("%d %s -> %s", r.ID, r.Type, r.Serializer.Name())
}

// Codec 是类型注册表，负责在写入时按运行时类型解析 Serializer，
// 在读取时按类型标签解析 Serializer。
type Codec struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Registration
	byID   map[TypeID]*Registration
	nextID TypeID
}

// New 创建预注册全部内置类型的 Codec。
func New() *Codec {
	c := &Codec{
		byType: make(map[reflect.Type]*Registration),
		byID:   make(map[TypeID]*Registration),
		nextID: FirstUserTypeID,
	}
	builtin := []struct {
		id TypeID
		t  reflect.Type
		s  Serializer
	}{
		{TypeBool, reflect.TypeFor[bool](), boolSerializer},
		{TypeInt, reflect.TypeFor[int](), signed[int]("int", math.MinInt, math.MaxInt)},
		{TypeInt8, reflect.TypeFor[int8](), signed[int8]("int8", math.MinInt8, math.MaxInt8)},
		{TypeInt16, reflect.TypeFor[int16](), signed[int16]("int16", math.MinInt16, math.MaxInt16)},
		{TypeInt32, reflect.TypeFor[int32](), signed[int32]("int32", math.MinInt32, math.MaxInt32)},
		{TypeInt64, reflect.TypeFor[int64](), signed[int64]("int64", math.MinInt64, math.MaxInt64)},
		{TypeUint, reflect.TypeFor[uint](), unsigned[uint]("uint", math.MaxUint)},
		{TypeUint8, reflect.TypeFor[uint8](), unsigned[uint8]("uint8", math.MaxUint8)},
		{TypeUint16, reflect.TypeFor[uint16](), unsigned[uint16]("uint16", math.MaxUint16)},
		{TypeUint32, reflect.TypeFor[uint32](), unsigned[uint32]("uint32", math.MaxUint32)},
		{TypeUint64, reflect.TypeFor[uint64](), unsigned[uint64]("uint64", math.MaxUint64)},
		{TypeFloat32, reflect.TypeFor[float32](), float32Serializer},
		{TypeFloat64, reflect.TypeFor[float64](), float64Serializer},
		{TypeString, reflect.TypeFor[string](), stringSerializer},
		{TypeBytes, reflect.TypeFor[[]byte](), bytesSerializer},
		{TypeTime, reflect.TypeFor[time.Time](), timeSerializer},
		{TypeDuration, reflect.TypeFor[time.Duration](), durationSerializer},
		{TypeStrings, reflect.TypeFor[[]string](), stringsSerializer},
		{TypeSlice, reflect.TypeFor[[]any](), sliceSerializer(c)},
		{TypeMap, reflect.TypeFor[map[string]any](), mapSerializer(c)},
	}
	for _, b := range builtin {
		r := &Registration{ID: b.id, Type: b.t, Serializer: b.s}
		c.byType[b.t] = r
		c.byID[b.id] = r
	}
	return c
}

// =============================================================================
// 注册与查询
// =============================================================================

// Register 注册类型 t 的 Serializer 并返回其 TypeID。
// 已注册的类型会被覆盖 Serializer，TypeID 保持不变。
func (c *Codec) Register(t reflect.Type, s Serializer) (TypeID, error) {
	if t == nil {
		return 0, ErrNilType
	}
	if s == nil {
		return 0, ErrNilSerializer
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.byType[t]; ok {
		// 复制后替换，避免正在使用旧 Registration 的读者看到半更新状态。
		updated := &Registration{ID: r.ID, Type: t, Serializer: s}
		c.byType[t] = updated
		c.byID[r.ID] = updated
		return r.ID, nil
	}

	id := c.nextID
	c.nextID++
	r := &Registration{ID: id, Type: t, Serializer: s}
	c.byType[t] = r
	c.byID[id] = r
	return id, nil
}

// Register 是 [Codec.Register] 的泛型便利函数，注册类型 T。
func Register[T any](c *Codec, s Serializer) (TypeID, error) {
	return c.Register(reflect.TypeFor[T](), s)
}

// Lookup 返回类型 t 的注册信息。
func (c *Codec) Lookup(t reflect.Type) (Registration, error) {
	c.mu.RLock()
	r, ok := c.byType[t]
	c.mu.RUnlock()
	if !ok {
		return Registration{}, fmt.Errorf("%w: %v", ErrUnregisteredType, t)
	}
	return *r, nil
}

// LookupID 返回 TypeID 对应的注册信息。
func (c *Codec) LookupID(id TypeID) (Registration, error) {
	c.mu.RLock()
	r, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return Registration{}, fmt.Errorf("%w: %d", ErrUnknownTypeID, id)
	}
	return *r, nil
}

// IsRegistered 检查类型 t 是否已注册。
func (c *Codec) IsRegistered(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byType[t]
	return ok
}

// Registrations 返回全部绑定关系的快照，按 TypeID 升序排列。
func (c *Codec) Registrations() []Registration {
	c.mu.RLock()
	out := make([]Registration, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, *r)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b Registration) int {
		return int(a.ID) - int(b.ID)
	})
	return out
}

// String 返回全部绑定关系的多行调试描述。
func (c *Codec) String() string {
	var sb strings.Builder
	sb.WriteString("xcodec.Codec(serializers=\n")
	for _, r := range c.Registrations() {
		sb.WriteString("\t")
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	sb.WriteString(")")
	return sb.String()
}

// =============================================================================
// Dynamic 编码
// =============================================================================

// WriteDynamic 写入 [TypeID][payload]；v 为 nil 时只写 null 标记。
func (c *Codec) WriteDynamic(buf *Buffer, v any) error {
	if v == nil {
		buf.PutUvarint(uint64(TypeNull))
		return nil
	}
	r, err := c.Lookup(reflect.TypeOf(v))
	if err != nil {
		return err
	}
	buf.PutUvarint(uint64(r.ID))
	return r.Serializer.Write(buf, v)
}

// ReadDynamic 读取类型标签并多态解码；读到 null 标记时返回 (nil, nil)。
func (c *Codec) ReadDynamic(buf *Buffer) (any, error) {
	raw, err := buf.GetUvarint()
	if err != nil {
		return nil, err
	}
	if raw > math.MaxUint32 {
		return nil, fmt.Errorf("%w: type id %d", ErrCorrupt, raw)
	}
	id := TypeID(raw)
	if id == TypeNull {
		return nil, nil
	}
	r, err := c.LookupID(id)
	if err != nil {
		return nil, err
	}
	return r.Serializer.Read(buf)
}

// =============================================================================
// 字段编码
// =============================================================================

// WriteField 按字段的编码纪律写入 v。
func (c *Codec) WriteField(buf *Buffer, f Field, v any) error {
	if f.Kind == Dynamic {
		if err := c.WriteDynamic(buf, v); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		return nil
	}

	if v == nil {
		buf.PutByte(0)
		return nil
	}
	if t := reflect.TypeOf(v); t != f.Type {
		return fmt.Errorf("field %s: %w: want %v, got %v", f.Name, ErrTypeMismatch, f.Type, t)
	}
	r, err := c.Lookup(f.Type)
	if err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	buf.PutByte(1)
	if err := r.Serializer.Write(buf, v); err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	return nil
}

// ReadField 按字段的编码纪律读取一个值。
func (c *Codec) ReadField(buf *Buffer, f Field) (any, error) {
	if f.Kind == Dynamic {
		v, err := c.ReadDynamic(buf)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return v, nil
	}

	present, err := buf.GetByte()
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	switch present {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("field %s: %w: presence marker %d", f.Name, ErrCorrupt, present)
	}
	r, err := c.Lookup(f.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	v, err := r.Serializer.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return v, nil
}

// SkipField 跳过一个字段，返回其在 buf 中的字节区间 [start, end)。
func (c *Codec) SkipField(buf *Buffer, f Field) (start, end int, err error) {
	start = buf.Position()
	if _, err = c.ReadField(buf, f); err != nil {
		return start, start, err
	}
	return start, buf.Position(), nil
}
