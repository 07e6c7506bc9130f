// Package xconf 基于 koanf 加载 YAML/JSON 配置。
//
// xconf 只负责把文件或字节数据解析为 koanf 树并反序列化到结构体，
// 不做默认值注入之外的配置治理。默认值由调用方以结构体零值之上的
// 预填值给出，文件中出现的键覆盖对应字段，未出现的键保持原值：
//
//	cfg, err := xconf.Decode("cache", src, xcache.DefaultConfig())
//
// 目标类型实现 [Validator] 时，Decode 在反序列化之后调用 Validate。
//
// # 支持的格式
//
//   - YAML：.yaml, .yml
//   - JSON：.json
//
// # 并发安全
//
// [Source] 的方法都是并发安全的。Reload 解析成功后整体替换 koanf 实例，
// 解析失败时保留旧配置。Client() 返回的实例在 Reload 后仍可使用，但指向旧配置。
//
// # Unmarshal
//
// 反序列化使用 koanf 默认的 mapstructure 配置：允许弱类型转换，
// 字符串形式的时长（如 "30s"）可直接解码为 time.Duration。
package xconf
