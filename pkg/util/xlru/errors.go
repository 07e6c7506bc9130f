package xlru

import "errors"

var (
	// ErrInvalidSize 表示容量为负数。
	ErrInvalidSize = errors.New("xlru: size must not be negative")

	// ErrSizeExceedsMax 表示容量超过上限 (2147483647)。
	ErrSizeExceedsMax = errors.New("xlru: size must not exceed 2147483647")
)
