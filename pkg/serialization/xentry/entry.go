package xentry

import "fmt"

// Entry 是缓存中的一条记录。
//
// Entry 是值类型，With* 方法返回修改后的副本；更新总是整体替换。
type Entry struct {
	// Key 是条目标识，可以是任何已注册类型。
	Key any

	// Version 是可选的单调修订号，nil 表示未设置。
	Version *int32

	// Routing 是可选的分区/亲和键。
	Routing any

	// Value 是缓存的载荷。
	Value any
}

// NewEntry 创建只包含 key 和 value 的条目。
func NewEntry(key, value any) Entry {
	return Entry{Key: key, Value: value}
}

// WithVersion 返回设置了版本号的副本。
func (e Entry) WithVersion(v int32) Entry {
	e.Version = &v
	return e
}

// WithRouting 返回设置了路由键的副本。
func (e Entry) WithRouting(r any) Entry {
	e.Routing = r
	return e
}

// VersionValue 返回版本号及其是否已设置。
func (e Entry) VersionValue() (int32, bool) {
	if e.Version == nil {
		return 0, false
	}
	return *e.Version, true
}

// String 返回调试描述。
func (e Entry) String() string {
	version := "<nil>"
	if e.Version != nil {
		version = fmt.Sprint(*e.Version)
	}
	return fmt.Sprintf("Entry{key=%v version=%s routing=%v value=%v}", e.Key, version, e.Routing, e.Value)
}

// field 按 schema 位置返回字段值，Version 未设置时返回 nil 接口。
func (e Entry) field(i int) any {
	switch i {
	case FieldKey:
		return e.Key
	case FieldVersion:
		if e.Version == nil {
			return nil
		}
		return *e.Version
	case FieldRouting:
		return e.Routing
	case FieldValue:
		return e.Value
	default:
		return nil
	}
}
