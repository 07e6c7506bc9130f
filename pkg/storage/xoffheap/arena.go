package xoffheap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

const minSlotSize = 32

// slot 定位一段堆外字节。class < 0 表示独占映射。
type slot struct {
	chunk *chunk
	off   int
	class int
}

// chunk 是一段映射内存。槽位按 next 顺序切分，用完后只能通过空闲链表复用。
type chunk struct {
	mem  []byte
	next int
}

type sizeClass struct {
	size int
	free []slot
}

// arena 管理全部映射内存。并发安全。
type arena struct {
	mu        sync.Mutex
	chunkSize int
	classes   []sizeClass
	current   []*chunk // 每个等级正在切分的 chunk
	chunks    []*chunk
	dedicated map[*chunk]struct{}
	mapped    int64
	released  bool
}

func newArena(chunkSize int) *arena {
	a := &arena{
		chunkSize: chunkSize,
		dedicated: make(map[*chunk]struct{}),
	}
	for size := minSlotSize; size <= chunkSize/8; size <<= 1 {
		a.classes = append(a.classes, sizeClass{size: size})
	}
	a.current = make([]*chunk, len(a.classes))
	return a
}

// classFor 返回容纳 n 字节的最小等级，超出最大槽位时返回 -1。
func (a *arena) classFor(n int) int {
	if n <= minSlotSize {
		return 0
	}
	c := bits.Len(uint(n-1)) - bits.Len(uint(minSlotSize-1))
	if c >= len(a.classes) {
		return -1
	}
	return c
}

// alloc 分配至少 n 字节（n > 0）的槽位。
func (a *arena) alloc(n int) (slot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return slot{}, ErrDestroyed
	}

	c := a.classFor(n)
	if c < 0 {
		return a.allocDedicated(n)
	}

	sc := &a.classes[c]
	if k := len(sc.free); k > 0 {
		s := sc.free[k-1]
		sc.free = sc.free[:k-1]
		return s, nil
	}

	ch := a.current[c]
	if ch == nil || ch.next+sc.size > len(ch.mem) {
		mem, err := mapAnon(a.chunkSize)
		if err != nil {
			return slot{}, fmt.Errorf("%w: %w", ErrMap, err)
		}
		ch = &chunk{mem: mem}
		a.current[c] = ch
		a.chunks = append(a.chunks, ch)
		a.mapped += int64(a.chunkSize)
	}
	s := slot{chunk: ch, off: ch.next, class: c}
	ch.next += sc.size
	return s, nil
}

func (a *arena) allocDedicated(n int) (slot, error) {
	ps := pageSize()
	size := (n + ps - 1) / ps * ps
	mem, err := mapAnon(size)
	if err != nil {
		return slot{}, fmt.Errorf("%w: %w", ErrMap, err)
	}
	ch := &chunk{mem: mem, next: size}
	a.dedicated[ch] = struct{}{}
	a.mapped += int64(size)
	return slot{chunk: ch, class: -1}, nil
}

// free 归还槽位。独占映射立即解除映射。
func (a *arena) free(s slot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released || s.chunk == nil {
		return nil
	}
	if s.class < 0 {
		delete(a.dedicated, s.chunk)
		a.mapped -= int64(len(s.chunk.mem))
		if err := unmap(s.chunk.mem); err != nil {
			return fmt.Errorf("%w: %w", ErrMap, err)
		}
		return nil
	}
	a.classes[s.class].free = append(a.classes[s.class].free, s)
	return nil
}

// bytes 返回槽位的前 n 字节。调用方必须保证槽位仍被持有。
func (a *arena) bytes(s slot, n int) []byte {
	return s.chunk.mem[s.off : s.off+n : s.off+n]
}

// release 解除全部映射。之后 alloc 返回 [ErrDestroyed]。
func (a *arena) release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	a.released = true

	var errs []error
	for _, ch := range a.chunks {
		if err := unmap(ch.mem); err != nil {
			errs = append(errs, err)
		}
	}
	for ch := range a.dedicated {
		if err := unmap(ch.mem); err != nil {
			errs = append(errs, err)
		}
	}
	a.chunks, a.dedicated, a.current, a.classes = nil, nil, nil, nil
	a.mapped = 0
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrMap, err)
	}
	return nil
}

type arenaStats struct {
	mapped    int64
	chunks    int
	dedicated int
}

func (a *arena) stats() arenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return arenaStats{mapped: a.mapped, chunks: len(a.chunks), dedicated: len(a.dedicated)}
}
