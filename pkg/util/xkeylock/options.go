package xkeylock

import "fmt"

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16
)

// Option 定义 [Group] 的可选配置。
type Option func(*options)

type options struct {
	maxKeys    int
	shardCount int
}

func defaultOptions() options {
	return options{shardCount: defaultShardCount}
}

// WithMaxKeys 限制同时存在（被持有或有人等待）的 key 数量。
// 达到上限后，新 key 上的 Lock/TryLock 返回 [ErrMaxKeysExceeded]。
// n <= 0 表示不限制（默认）。不同分片并发创建 key 时上限可能被短暂越过。
func WithMaxKeys(n int) Option {
	n = max(n, 0)
	return func(o *options) {
		o.maxKeys = n
	}
}

// WithShardCount 设置分片数，必须为 2 的幂且不超过 65536。默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

func (o *options) validate() error {
	n := o.shardCount
	if n <= 0 || n > maxShardCount || n&(n-1) != 0 {
		return fmt.Errorf("%w: want power of 2 in [1, %d], got %d", ErrInvalidShardCount, maxShardCount, n)
	}
	return nil
}
