package xkeylock

import "errors"

var (
	// ErrNilContext 表示 Lock 收到 nil ctx。
	ErrNilContext = errors.New("xkeylock: nil context")

	// ErrInvalidKey 表示 key 为空字符串。
	ErrInvalidKey = errors.New("xkeylock: invalid key")

	// ErrLockOccupied 表示 TryLock 时锁已被其他调用方持有。
	ErrLockOccupied = errors.New("xkeylock: lock occupied")

	// ErrLockNotHeld 表示锁已释放，Unlock 第二次及之后调用时返回。
	ErrLockNotHeld = errors.New("xkeylock: lock not held")

	// ErrClosed 表示锁组已关闭。
	ErrClosed = errors.New("xkeylock: closed")

	// ErrMaxKeysExceeded 表示同时存在的 key 数量已达上限。
	ErrMaxKeysExceeded = errors.New("xkeylock: max keys exceeded")

	// ErrInvalidShardCount 表示分片数不是 [1, 65536] 内的 2 的幂。
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
