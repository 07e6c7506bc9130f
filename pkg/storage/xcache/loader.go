package xcache

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
)

// Loader 在缓存未命中时提供值。
type Loader[V any] interface {
	Load(ctx context.Context) (V, error)
}

// LoaderFunc 把普通函数适配为 [Loader]。
type LoaderFunc[V any] func(ctx context.Context) (V, error)

// Load 调用 f。
func (f LoaderFunc[V]) Load(ctx context.Context) (V, error) { return f(ctx) }

// SingleFlight 控制并发未命中时加载函数的互斥方式。
type SingleFlight int

const (
	// SingleFlightPerKey 按 key 互斥：同一个 key 同一时刻最多一次加载。
	SingleFlightPerKey SingleFlight = iota

	// SingleFlightNone 不做互斥，并发未命中的调用各自加载。
	SingleFlightNone
)

// String 返回配置文件中使用的名称。
func (m SingleFlight) String() string {
	switch m {
	case SingleFlightPerKey:
		return "per_key"
	case SingleFlightNone:
		return "none"
	default:
		return fmt.Sprintf("SingleFlight(%d)", int(m))
	}
}

// ParseSingleFlight 解析配置名称，空字符串视为 per_key。
func ParseSingleFlight(s string) (SingleFlight, error) {
	switch s {
	case "", "per_key":
		return SingleFlightPerKey, nil
	case "none":
		return SingleFlightNone, nil
	default:
		return 0, fmt.Errorf("%w: unknown single_flight mode %q", ErrInvalidConfig, s)
	}
}

// safeLoad 调用加载函数并把 panic 转为 [ErrLoadPanic]。
func safeLoad[V any](ctx context.Context, loader Loader[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrLoadPanic, r, debug.Stack())
		}
	}()
	return loader.Load(ctx)
}

// isNil 判断 v 是否为 nil 接口或 nil 的指针/map/slice/func/chan/接口。
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
