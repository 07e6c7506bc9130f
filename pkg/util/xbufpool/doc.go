// Package xbufpool 提供 [xcodec.Buffer] 的复用池。
//
// 两种模式：
//
//   - 有界模式（WithSize(n)，n > 0）：最多同时借出 n 个 Buffer，
//     池耗尽时 Acquire 阻塞，直到有 Buffer 归还、ctx 结束或池关闭
//   - 弹性模式（默认，WithSize(0)）：基于 sync.Pool，Acquire 永不阻塞
//
// Buffer 不携带持久数据，忘记归还只是资源泄漏而非正确性问题；
// 仍应优先使用 [Pool.With]，它在所有退出路径（包括 panic）上归还 Buffer。
//
// 归还时 Buffer 会被 Reset。容量超过 WithMaxRetainedSize 的 Buffer
// 直接丢弃，避免一次超大编码永久占用内存。
package xbufpool
