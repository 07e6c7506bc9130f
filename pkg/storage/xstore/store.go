package xstore

import (
	"context"
	"fmt"
	"time"
)

// Record 是交给存储的一条序列化记录。
type Record struct {
	// Data 是编码后的字节。
	Data []byte

	// TTL 是存活时长，<= 0 表示永不过期。
	TTL time.Duration
}

// Size 返回记录字节数。
func (r Record) Size() int64 { return int64(len(r.Data)) }

// ExpireAt 返回以 now 为起点的过期时刻；TTL <= 0 时返回零值。
func (r Record) ExpireAt(now time.Time) time.Time {
	if r.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(r.TTL)
}

// Store 是序列化记录存储契约。实现必须并发安全。
type Store interface {
	// Put 写入或替换记录。
	Put(ctx context.Context, key string, rec Record) error

	// GetSerialized 返回记录字节；不存在或已过期时 ok 为 false。
	GetSerialized(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Remove 删除记录，不存在时为空操作。
	Remove(ctx context.Context, key string) error

	// Size 返回存活记录数。
	Size(ctx context.Context) (int64, error)

	// CleanUp 主动清理已过期的记录。
	CleanUp(ctx context.Context) error

	// Destroy 释放存储持有的全部资源，之后的调用返回错误。
	Destroy() error
}

// Ranger 是支持遍历的存储的可选能力。
type Ranger interface {
	// Range 对每条存活记录调用 fn，fn 返回 false 时停止遍历。
	// data 仅在 fn 调用期间有效。
	Range(ctx context.Context, fn func(key string, data []byte) bool) error
}

// =============================================================================
// 删除通知
// =============================================================================

// RemovalCause 表示记录被移除的原因。
type RemovalCause uint8

const (
	// RemovalExplicit 表示调用方显式删除。
	RemovalExplicit RemovalCause = iota + 1

	// RemovalReplaced 表示记录被同 key 的新记录替换。
	RemovalReplaced

	// RemovalExpired 表示记录 TTL 到期。
	RemovalExpired

	// RemovalEvicted 表示记录因容量不足被淘汰。
	RemovalEvicted

	// RemovalDestroyed 表示存储被销毁。
	RemovalDestroyed
)

// String 返回原因名称。
func (c RemovalCause) String() string {
	switch c {
	case RemovalExplicit:
		return "explicit"
	case RemovalReplaced:
		return "replaced"
	case RemovalExpired:
		return "expired"
	case RemovalEvicted:
		return "evicted"
	case RemovalDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("RemovalCause(%d)", uint8(c))
	}
}

// RemovalNotification 描述一次记录移除。
type RemovalNotification struct {
	Key   string
	Size  int64
	Cause RemovalCause
}

// RemovalListener 接收记录移除通知。
type RemovalListener func(RemovalNotification)
