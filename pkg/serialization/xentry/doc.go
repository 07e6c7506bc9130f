// Package xentry 定义缓存条目及其四字段 schema 编解码器。
//
// # 记录布局
//
// 每条记录按固定顺序写入四个字段：
//
//	key     Dynamic  [TypeID|0][payload]
//	version Fixed    [0|1][varint int32]
//	routing Dynamic  [TypeID|0][payload]
//	value   Dynamic  [TypeID|0][payload]
//
// 记录没有整体长度前缀，字段边界完全由各字段的编码规则推导。
//
// # 局部读取
//
// [Serializer.DecodeID] 只解码 key 字段；[Serializer.Matches] 在编码字节上
// 逐字段比较模板，遇到第一个不匹配的字段立即返回，不构造完整的值。
// 二者（以及 [Serializer.Decode]）都从记录起点读取，并在返回前恢复
// Buffer 原有的 position/limit，同一个 Buffer 可以连续执行多次查询。
//
// # 模板匹配
//
// 模板中为 nil 的字段是通配符。非 nil 字段按与记录相同的规则编码后
// 逐字节比较，因此"相等"要求类型与值都相同：int32(1) 与 int64(1) 不相等。
package xentry
