// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xbufpool: 编解码缓冲区复用池，支持有界与弹性两种模式
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
//   - xpool: 泛型 Worker Pool，可配置 worker/队列大小、优雅关闭
package util
