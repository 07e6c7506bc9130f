package xlru

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// maxSize 是 Order 的容量上限，也是 size 为 0 时使用的容量。
const maxSize = math.MaxInt32

// Order 记录 key 的最近使用顺序。必须通过 [New] 创建。并发安全。
type Order[K comparable] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[K, struct{}]
}

// New 创建顺序表。size 为 0 表示不限容量；size > 0 时，超出容量的
// Touch 会静默丢弃最久未访问的 key。
func New[K comparable](size int) (*Order[K], error) {
	switch {
	case size < 0:
		return nil, ErrInvalidSize
	case size > maxSize:
		return nil, ErrSizeExceedsMax
	case size == 0:
		size = maxSize
	}
	lru, err := simplelru.NewLRU[K, struct{}](size, nil)
	if err != nil {
		return nil, err
	}
	return &Order[K]{lru: lru}, nil
}

// Touch 把 key 标记为最近使用，不存在时加入。
func (o *Order[K]) Touch(key K) {
	o.mu.Lock()
	o.lru.Add(key, struct{}{})
	o.mu.Unlock()
}

// Forget 移除 key，返回 key 是否存在。
func (o *Order[K]) Forget(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lru.Remove(key)
}

// PopOldest 移除并返回最久未使用的 key。为空时 ok 为 false。
func (o *Order[K]) PopOldest() (key K, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key, _, ok = o.lru.RemoveOldest()
	return key, ok
}

// Len 返回 key 数量。
func (o *Order[K]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lru.Len()
}

// Keys 按从旧到新的顺序返回全部 key 的副本。
func (o *Order[K]) Keys() []K {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lru.Keys()
}
