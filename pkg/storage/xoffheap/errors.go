package xoffheap

import "errors"

var (
	// ErrNilAccountant 表示未提供容量记账器。
	ErrNilAccountant = errors.New("xoffheap: nil accountant")

	// ErrDestroyed 表示存储已销毁。
	ErrDestroyed = errors.New("xoffheap: destroyed")

	// ErrEmptyKey 表示 key 为空。
	ErrEmptyKey = errors.New("xoffheap: empty key")

	// ErrInvalidShardCount 表示分片数不是 2 的幂。
	ErrInvalidShardCount = errors.New("xoffheap: invalid shard count")

	// ErrInvalidChunkSize 表示 chunk 大小不合法。
	ErrInvalidChunkSize = errors.New("xoffheap: invalid chunk size")

	// ErrInvalidSchedule 表示 cron 表达式无法解析。
	ErrInvalidSchedule = errors.New("xoffheap: invalid cleanup schedule")

	// ErrMap 表示向操作系统申请或归还内存失败。
	ErrMap = errors.New("xoffheap: memory mapping failed")
)
