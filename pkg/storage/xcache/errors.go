package xcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 是参数错误的根错误。
	ErrInvalidArgument = errors.New("xcache: invalid argument")

	// ErrNilKey 表示 key 为 nil。
	ErrNilKey = fmt.Errorf("%w: nil key", ErrInvalidArgument)

	// ErrNilValue 表示值为 nil，或加载函数返回了 nil。
	ErrNilValue = fmt.Errorf("%w: nil value", ErrInvalidArgument)

	// ErrNilLoader 表示 Get 未提供加载函数。
	ErrNilLoader = fmt.Errorf("%w: nil loader", ErrInvalidArgument)

	// ErrNilStore 表示构造时未提供存储。
	ErrNilStore = fmt.Errorf("%w: nil store", ErrInvalidArgument)

	// ErrInvalidConfig 表示配置不合法。
	ErrInvalidConfig = fmt.Errorf("%w: invalid config", ErrInvalidArgument)
)

var (
	// ErrIllegalState 是状态错误的根错误。
	ErrIllegalState = errors.New("xcache: illegal state")

	// ErrStatsDisabled 表示构造时未启用统计。
	ErrStatsDisabled = fmt.Errorf("%w: stats disabled", ErrIllegalState)

	// ErrClosed 表示缓存已销毁。
	ErrClosed = fmt.Errorf("%w: cache destroyed", ErrIllegalState)

	// ErrRangeUnsupported 表示存储未实现 xstore.Ranger，无法执行 Keys/Find。
	ErrRangeUnsupported = fmt.Errorf("%w: store does not support range", ErrIllegalState)
)

var (
	// ErrLoadFailure 是加载失败的根错误，[*LoadError] 满足 errors.Is(err, ErrLoadFailure)。
	ErrLoadFailure = errors.New("xcache: load failure")

	// ErrLoadPanic 表示加载函数发生 panic。
	ErrLoadPanic = errors.New("xcache: loader panicked")
)

// LoadError 描述一次失败的加载，保留原始原因。
type LoadError struct {
	Key any
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("xcache: load %v: %v", e.Key, e.Err)
}

// Unwrap 返回原始原因。
func (e *LoadError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrLoadFailure) 成立。
func (e *LoadError) Is(target error) bool { return target == ErrLoadFailure }
