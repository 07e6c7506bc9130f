// Package xcache 是组合编解码、缓冲池与序列化存储的缓存引擎。
//
// 写入时条目经 [xentry.Serializer] 编码到从 [xbufpool.Pool] 借出的缓冲区，
// 连同 TTL 交给 [xstore.Store]；读取时取回字节并解码。存储负责容量记账，
// 引擎自身不持有任何条目的引用。
//
// # 加载
//
// Get 在未命中时调用 [Loader]。默认按 key 的编码字节加锁（[xkeylock]），
// 同一个 key 同一时刻最多一次加载；持锁后的二次检查不计入 miss。
// [SingleFlightNone] 关闭互斥，并发未命中时可能重复加载。
//
// 加载失败包装为 [*LoadError]，在 Get 中记录一次 Error 日志后返回，失败的值不会被缓存。
// 加载函数 panic 转为 [ErrLoadPanic]，返回 nil 值的加载视为 [ErrNilValue]。
//
// # 统计
//
// WithStats(true) 启用命中/未命中/加载计数，Stats 在未启用时返回 [ErrStatsDisabled]。
// 计数器单调递增，各计数器独立读取。
//
// # 查询
//
// 存储实现 [xstore.Ranger] 时，Keys 只解码每条记录的 key，
// Find 在编码字节上按模板匹配，只对命中的记录做完整解码。
package xcache

//go:generate mockgen -destination=mock_store_test.go -package=xcache github.com/omeyang/xgrid/pkg/storage/xstore Store
