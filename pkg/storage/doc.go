// Package storage 提供缓存存储相关的子包。
//
// 子包列表：
//   - xcache: 缓存引擎，按 key 读写、未命中加载、统计
//   - xcapacity: 内存与条目数记账、容量准入策略
//   - xoffheap: 基于匿名内存映射的堆外记录存储
//   - xstore: 存储接口及 Redis、ristretto 两种实现
//
// 设计原则：
//   - 存储层只处理序列化后的字节，类型信息留在引擎层
//   - 所有存储实现共用同一个记账器，保证用量可见
//   - 内置可观测性（指标、追踪）
package storage
