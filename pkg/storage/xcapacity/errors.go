package xcapacity

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded 表示候选记录超出容量上限。
var ErrCapacityExceeded = errors.New("xcapacity: capacity exceeded")

var (
	// ErrMemoryExceeded 表示超出内存上限。
	ErrMemoryExceeded = fmt.Errorf("%w: memory", ErrCapacityExceeded)

	// ErrItemsExceeded 表示超出条目数上限。
	ErrItemsExceeded = fmt.Errorf("%w: items", ErrCapacityExceeded)
)

// ErrNilAccountant 表示传入的 Accountant 为 nil。
var ErrNilAccountant = errors.New("xcapacity: nil accountant")
