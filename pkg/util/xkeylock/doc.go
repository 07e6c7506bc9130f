// Package xkeylock 提供按字符串 key 互斥的进程内锁组。
//
// 同一个 key 上的 Lock 调用串行执行，不同 key 互不影响。
// 缓存引擎用它保证同一个 key 的加载函数同一时刻只执行一次。
//
// # 特性
//
//   - Lock 支持 ctx 超时与取消，nil ctx 返回 [ErrNilContext]
//   - TryLock 非阻塞，锁被占用时返回 [ErrLockOccupied]
//   - Guard.Unlock 幂等：首次返回 nil，之后返回 [ErrLockNotHeld]
//   - 按 xxhash 分片管理条目，无人持有或等待的 key 立即回收
//   - WithMaxKeys 限制同时存在的 key 数量
//   - Close 拒绝新请求并唤醒全部等待者，已持有的锁不受影响
package xkeylock
