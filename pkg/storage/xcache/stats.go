package xcache

import (
	"sync/atomic"
	"time"
)

// Stats 是统计快照。
type Stats struct {
	HitCount           int64
	MissCount          int64
	LoadSuccessCount   int64
	LoadExceptionCount int64
	TotalLoadTime      time.Duration
}

// RequestCount 返回命中与未命中之和。
func (s Stats) RequestCount() int64 { return s.HitCount + s.MissCount }

// HitRate 返回命中率，无请求时为 1。
func (s Stats) HitRate() float64 {
	n := s.RequestCount()
	if n == 0 {
		return 1
	}
	return float64(s.HitCount) / float64(n)
}

// MissRate 返回未命中率，无请求时为 0。
func (s Stats) MissRate() float64 {
	n := s.RequestCount()
	if n == 0 {
		return 0
	}
	return float64(s.MissCount) / float64(n)
}

// LoadCount 返回加载次数。
func (s Stats) LoadCount() int64 { return s.LoadSuccessCount + s.LoadExceptionCount }

// AverageLoadPenalty 返回平均加载耗时，无加载时为 0。
func (s Stats) AverageLoadPenalty() time.Duration {
	n := s.LoadCount()
	if n == 0 {
		return 0
	}
	return s.TotalLoadTime / time.Duration(n)
}

// statsCounter 的各计数器独立原子更新，nil 表示未启用。
type statsCounter struct {
	hits          atomic.Int64
	misses        atomic.Int64
	loadSuccess   atomic.Int64
	loadException atomic.Int64
	loadNanos     atomic.Int64
}

func (c *statsCounter) recordHit() {
	if c != nil {
		c.hits.Add(1)
	}
}

func (c *statsCounter) recordMiss() {
	if c != nil {
		c.misses.Add(1)
	}
}

func (c *statsCounter) recordLoadSuccess(d time.Duration) {
	if c != nil {
		c.loadSuccess.Add(1)
		c.loadNanos.Add(int64(d))
	}
}

func (c *statsCounter) recordLoadException(d time.Duration) {
	if c != nil {
		c.loadException.Add(1)
		c.loadNanos.Add(int64(d))
	}
}

func (c *statsCounter) snapshot() Stats {
	return Stats{
		HitCount:           c.hits.Load(),
		MissCount:          c.misses.Load(),
		LoadSuccessCount:   c.loadSuccess.Load(),
		LoadExceptionCount: c.loadException.Load(),
		TotalLoadTime:      time.Duration(c.loadNanos.Load()),
	}
}
