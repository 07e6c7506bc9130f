// Package xcapacity 提供容量记账器：用两个独立的原子计数器跟踪
// 存储层已用内存字节数与条目数。
//
// # 记账规则
//
//   - Add(added, prev)：prev > 0 表示替换，已用内存减 prev、条目数不变；
//     否则表示新插入，条目数加一。两种情况都把 added 加到已用内存
//   - Remove(freed)：freed > 0 时已用内存减 freed、条目数减一；
//     freed == 0 时为空操作，零字节记录的删除不影响条目数
//
// 计数器只通过增量维护，从不全量重算，因此每条变更路径都必须
// 恰好上报一次准确的增量。
//
// # 一致性
//
// 两个计数器各自原子，但不构成组合事务：并发变更期间 [Accountant.Usage]
// 可能观察到瞬时不一致的组合。这对统计足够；需要严格准入的策略
// 应在自身的互斥保护下重新检查。
//
// # 准入
//
// [Accountant.EnsureCapacity] 只负责提供当前用量，是否拒绝、淘汰或阻塞
// 由注入的 [Policy] 决定。默认的 [RejectPolicy] 先检查内存上限，再检查条目上限。
package xcapacity
