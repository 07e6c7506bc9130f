// Package xcodec 提供带类型注册表的二进制编解码器。
//
// # 核心概念
//
//   - Buffer：带独立读游标（position）和读上限（limit）的字节缓冲区，
//     写入总是追加到末尾，读取从 position 开始且不得越过 limit
//   - Serializer：单一类型的编解码实现
//   - Codec：类型 → Serializer 的注册表，每个注册类型分配稳定的 TypeID
//   - Field：字段描述符，分为 Fixed 与 Dynamic 两种编码纪律
//
// # 字段编码
//
// Fixed 字段的类型在定义 schema 时即已确定，线上格式为：
//
//	[presence 0|1][payload]
//
// 不写类型标签，解码端直接使用已知类型的 Serializer。
//
// Dynamic 字段的类型在编码时才能确定，线上格式为：
//
//	[uvarint TypeID，0 表示 null][payload]
//
// 解码端读取 TypeID 后从注册表中多态地解析 Serializer。
//
// # 注册语义
//
// 重复注册同一类型会覆盖其 Serializer，但保留原有 TypeID，
// 因此已编码的数据仍能被新的 Serializer 解读。
// 查询未注册类型返回 [ErrUnregisteredType]，读取未知 TypeID 返回 [ErrUnknownTypeID]，
// 二者均可通过 errors.Is(err, ErrSerialization) 统一识别。
//
// [Codec.Registrations] 与 [Codec.String] 提供全部绑定关系的调试枚举。
//
// # 并发
//
// Codec 并发安全：注册持有写锁，查询持有读锁。Buffer 不是并发安全的，
// 应通过 xbufpool 借出后在单个 goroutine 内使用。
package xcodec
