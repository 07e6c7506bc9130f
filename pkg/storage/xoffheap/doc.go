// Package xoffheap 实现把记录字节存放在 Go 堆外的 [xstore.Store]。
//
// 记录写入通过匿名 mmap 映射的内存块（chunk），GC 不扫描也不移动这些内存。
// 堆上只保留每条记录的句柄（所在块、偏移、长度、过期时间）。
//
// # 内存布局
//
// 每个 chunk 只服务一个尺寸等级。等级的槽位大小从 32 字节起按 2 的幂增长，
// 最大为 chunk 大小的 1/8。释放的槽位进入所属等级的空闲链表，被后续写入复用。
// 超过最大槽位的记录单独映射一段内存，删除时立即归还给操作系统。
//
// 非 unix 平台没有匿名 mmap，退化为堆上分配的字节切片，语义不变。
//
// # 过期与清理
//
// TTL 惰性生效：读到过期句柄视为不存在并当场回收。
// CleanUp 扫描全部分片回收过期记录；WithCleanupSchedule 用 cron 定期执行 CleanUp。
//
// # 溢出淘汰
//
// 启用 WithEvictOnOverflow 后，容量准入失败时按最近最少使用顺序淘汰记录，
// 直到新记录被准入或没有可淘汰的记录。
//
// # 删除通知
//
// WithRemovalListener 注册的监听器在 xpool worker 中异步执行，
// 存储的读写路径只做非阻塞投递。队列满时通知被丢弃并计数。
package xoffheap
