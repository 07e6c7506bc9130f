// Package xlru 提供并发安全的最近使用顺序（recency order）。
//
// Order 基于 github.com/hashicorp/golang-lru/v2/simplelru，只记录 key 的
// 访问先后，不保存值。堆外存储用它在容量不足时挑选最久未访问的记录淘汰：
// 读写时 Touch，删除时 Forget，淘汰时 PopOldest。
//
// # 设计决策
//
// 底层 simplelru 不是并发安全的，Order 用一把互斥锁保护全部操作。
// Touch 会改变顺序，读锁无法满足，因此不使用 RWMutex。
package xlru
