package xcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xgrid/pkg/storage/xcapacity"
	"github.com/omeyang/xgrid/pkg/storage/xoffheap"
	"github.com/omeyang/xgrid/pkg/util/xbufpool"
)

// Config 是可由 xconf 加载的缓存配置。
type Config struct {
	TTL            time.Duration `koanf:"ttl"`
	Stats          bool          `koanf:"stats"`
	MaxMemoryBytes int64         `koanf:"max_memory_bytes"`
	MaxItems       int64         `koanf:"max_items"`
	SingleFlight   string        `koanf:"single_flight"`
	BufferPool     PoolConfig    `koanf:"buffer_pool"`
	Offheap        OffheapConfig `koanf:"offheap"`
}

// PoolConfig 是缓冲池配置。Size 为 0 表示弹性池。
type PoolConfig struct {
	Size       int `koanf:"size"`
	BufferSize int `koanf:"buffer_size"`
}

// OffheapConfig 是堆外存储配置，零值字段取存储的默认值。
type OffheapConfig struct {
	Shards          int    `koanf:"shards"`
	ChunkSize       int    `koanf:"chunk_size"`
	CleanupSchedule string `koanf:"cleanup_schedule"`
	EvictOnOverflow bool   `koanf:"evict_on_overflow"`
}

// DefaultConfig 返回默认配置：不限容量、永不过期、弹性缓冲池、按 key 互斥加载。
func DefaultConfig() Config {
	return Config{SingleFlight: SingleFlightPerKey.String()}
}

// Validate 校验配置。
func (c Config) Validate() error {
	var errs []error
	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("ttl must not be negative, got %s", c.TTL))
	}
	if c.MaxMemoryBytes < 0 {
		errs = append(errs, fmt.Errorf("max_memory_bytes must not be negative, got %d", c.MaxMemoryBytes))
	}
	if c.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("max_items must not be negative, got %d", c.MaxItems))
	}
	if c.BufferPool.Size < 0 || c.BufferPool.BufferSize < 0 {
		errs = append(errs, errors.New("buffer_pool sizes must not be negative"))
	}
	if c.Offheap.Shards < 0 || c.Offheap.ChunkSize < 0 {
		errs = append(errs, errors.New("offheap sizes must not be negative"))
	}
	if _, err := ParseSingleFlight(c.SingleFlight); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Restriction 返回配置对应的容量上限。
func (c Config) Restriction() xcapacity.Restriction {
	return xcapacity.Restriction{MaxMemoryBytes: c.MaxMemoryBytes, MaxItems: c.MaxItems}
}

// NewFromConfig 按配置组装记账器、堆外存储与缓冲池并创建缓存。
// 返回的记账器供调用方读取用量；存储与缓冲池随 Destroy 释放。
// opts 在配置项之后应用，可覆盖配置。
func NewFromConfig[K, V any](cfg Config, opts ...Option) (*Cache[K, V], *xcapacity.Accountant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	mode, _ := ParseSingleFlight(cfg.SingleFlight)

	// 先解析一次调用方选项，取出日志记录器供存储与缓冲池使用。
	peek := defaultOptions()
	for _, opt := range opts {
		opt(&peek)
	}
	logger := peek.logger

	acc := xcapacity.New(cfg.Restriction(), xcapacity.WithLogger(logger))

	storeOpts := []xoffheap.Option{
		xoffheap.WithEvictOnOverflow(cfg.Offheap.EvictOnOverflow),
		xoffheap.WithCleanupSchedule(cfg.Offheap.CleanupSchedule),
		xoffheap.WithLogger(logger),
	}
	if cfg.Offheap.Shards > 0 {
		storeOpts = append(storeOpts, xoffheap.WithShards(cfg.Offheap.Shards))
	}
	if cfg.Offheap.ChunkSize > 0 {
		storeOpts = append(storeOpts, xoffheap.WithChunkSize(cfg.Offheap.ChunkSize))
	}
	store, err := xoffheap.New(acc, storeOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var pool *xbufpool.Pool
	if peek.pool == nil {
		poolOpts := []xbufpool.Option{xbufpool.WithSize(cfg.BufferPool.Size), xbufpool.WithLogger(logger)}
		if cfg.BufferPool.BufferSize > 0 {
			poolOpts = append(poolOpts, xbufpool.WithBufferSize(cfg.BufferPool.BufferSize))
		}
		pool, err = xbufpool.New(poolOpts...)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("%w: %w", ErrInvalidConfig, err), store.Destroy())
		}
	}

	base := []Option{WithTTL(cfg.TTL), WithStats(cfg.Stats), WithSingleFlight(mode)}
	if pool != nil {
		base = append(base, withOwnedPool(pool))
	}
	c, err := New[K, V](store, append(base, opts...)...)
	if err != nil {
		if pool != nil {
			err = errors.Join(err, pool.Close())
		}
		return nil, nil, errors.Join(err, store.Destroy())
	}
	return c, acc, nil
}
