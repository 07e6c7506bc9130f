package xstore

import "errors"

var (
	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xstore: nil client")

	// ErrNilAccountant 表示传入的记账器为 nil。
	ErrNilAccountant = errors.New("xstore: nil accountant")

	// ErrEmptyKey 表示 key 为空字符串。
	ErrEmptyKey = errors.New("xstore: empty key")

	// ErrClosed 表示存储已销毁。
	ErrClosed = errors.New("xstore: store is closed")

	// ErrRejected 表示记录被存储的准入策略丢弃（如 ristretto 的 TinyLFU）。
	ErrRejected = errors.New("xstore: record rejected by store")

	// ErrUnavailable 表示熔断器处于打开状态，请求被快速失败。
	ErrUnavailable = errors.New("xstore: store unavailable")
)
