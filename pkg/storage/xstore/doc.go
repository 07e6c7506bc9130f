// Package xstore 定义缓存引擎消费的序列化记录存储契约，并提供
// 基于 Redis 与 ristretto 的两种实现。
//
// # 存储契约
//
// [Store] 以字符串 key 保存 [Record]（编码字节 + TTL）：
//
//   - Put 不得在返回后继续持有 Record.Data，需要保存的实现必须复制
//   - GetSerialized 在 key 从未写入或已过期时都返回 ok=false，
//     返回的字节归调用方所有
//   - 每次变更都必须恰好一次地向 [xcapacity.Accountant] 上报准确的增量：
//     写入前调用 EnsureCapacity/EnsureReplaceCapacity，写入后调用 Add，
//     删除后调用 Remove
//
// 支持遍历的实现额外实现 [Ranger]，缓存引擎借此实现按 key 扫描和模板查询。
//
// # Redis
//
// [Redis] 使用 SET ... GET 获取被替换记录的大小、GETDEL 获取被删除记录的大小，
// 从而得到准确的记账增量。TTL 由服务端执行：服务端过期的 key 不会回调记账器，
// 这是已知的限制，Size 通过 SCAN 计数而非记账器得到。
// 可选的熔断器（xbreaker）保护所有 Redis 调用，redis.Nil 不计为失败。
//
// # Memory
//
// [Memory] 基于 ristretto 的 TinyLFU 缓存，cost 即记录字节数。
// ristretto 异步写入，Memory 在每次写入后调用 Wait 保证写后可读。
// 被 ristretto 淘汰或过期清理的记录通过 OnEvict 回调从记账器扣除。
// Memory 不支持遍历。
package xstore
