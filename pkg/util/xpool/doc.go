// Package xpool 提供泛型 worker pool，用于把回调从调用方的临界路径上移开。
//
// 堆外存储用它异步派发 removal 通知：存储在持锁路径上只做非阻塞的 Submit，
// 监听器在 worker goroutine 中执行，慢监听器不会拖慢读写。
//
// # 语义
//
//   - New 创建后立即启动 worker，workers ∈ [1, 65536]，queueSize ∈ [1, 16777216]
//   - Submit 永不阻塞：队列满返回 [ErrQueueFull]，关闭后返回 [ErrPoolStopped]
//   - handler 的 panic 被恢复并连同堆栈记录日志，worker 继续处理后续任务
//   - Close 等待队列排空；Shutdown(ctx) 在 ctx 结束时提前返回，
//     残留 worker 继续排空队列，可通过 Done 等待
//   - Close/Shutdown 不可在 handler 内调用，否则死锁
package xpool
