package xcodec

import (
	"encoding/binary"
	"fmt"
)

// Buffer 是编解码使用的字节缓冲区。
//
// 写入（Put*）总是追加到已写数据末尾，并把 limit 推到新的末尾；
// 读取（Get*）从 position 开始，不得越过 limit。
// Clear 把 position 归零、limit 置为数据长度，等价于 ByteBuffer.clear，
// 是 DecodeID/Matches 等局部读取操作保存-恢复游标的基础。
//
// Buffer 不是并发安全的。
type Buffer struct {
	own     []byte // 缓冲区自有的底层数组，Reset 后复用
	data    []byte // 当前视图：自有数组或 Wrap 传入的外部切片
	pos     int
	limit   int
	wrapped bool
}

// NewBuffer 创建初始容量为 capacity 的 Buffer。
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	own := make([]byte, 0, capacity)
	return &Buffer{own: own, data: own}
}

// Reset 清空已写数据，切回自有底层数组，准备下一次编码。
func (b *Buffer) Reset() {
	b.data = b.own[:0]
	b.pos = 0
	b.limit = 0
	b.wrapped = false
}

// Wrap 把 data 设为只读视图：position=0，limit=len(data)。
// Buffer 不会修改 data；Wrap 之后的写入会先把内容复制到自有数组。
func (b *Buffer) Wrap(data []byte) {
	b.data = data
	b.pos = 0
	b.limit = len(data)
	b.wrapped = true
}

// Clear 把 position 归零、limit 置为数据长度。
func (b *Buffer) Clear() {
	b.pos = 0
	b.limit = len(b.data)
}

// Bytes 返回全部已写（或已 Wrap）的数据，不受 position/limit 影响。
// 返回值与 Buffer 共享底层数组，下一次 Reset 后失效。
func (b *Buffer) Bytes() []byte { return b.data }

// Len 返回数据总长度。
func (b *Buffer) Len() int { return len(b.data) }

// Cap 返回自有底层数组的容量。
func (b *Buffer) Cap() int { return cap(b.own) }

// Position 返回读游标。
func (b *Buffer) Position() int { return b.pos }

// Limit 返回读上限。
func (b *Buffer) Limit() int { return b.limit }

// Remaining 返回 position 到 limit 之间的可读字节数。
func (b *Buffer) Remaining() int { return b.limit - b.pos }

// SetPosition 设置读游标，p 必须在 [0, limit] 内。
func (b *Buffer) SetPosition(p int) error {
	if p < 0 || p > b.limit {
		return fmt.Errorf("%w: position %d outside [0, %d]", ErrInvalidPosition, p, b.limit)
	}
	b.pos = p
	return nil
}

// SetLimit 设置读上限，l 必须在 [position, Len()] 内。
func (b *Buffer) SetLimit(l int) error {
	if l < b.pos || l > len(b.data) {
		return fmt.Errorf("%w: limit %d outside [%d, %d]", ErrInvalidPosition, l, b.pos, len(b.data))
	}
	b.limit = l
	return nil
}

// Cursor 是 position/limit 的快照。
type Cursor struct {
	pos, limit int
}

// Save 返回当前游标快照。
func (b *Buffer) Save() Cursor {
	return Cursor{pos: b.pos, limit: b.limit}
}

// Restore 恢复 Save 保存的游标，越界部分截断到数据长度。
func (b *Buffer) Restore(c Cursor) {
	b.limit = min(max(c.limit, 0), len(b.data))
	b.pos = min(max(c.pos, 0), b.limit)
}

// =============================================================================
// 写入
// =============================================================================

func (b *Buffer) writable() {
	if b.wrapped {
		b.own = append(b.own[:0], b.data...)
		b.data = b.own
		b.wrapped = false
	}
}

func (b *Buffer) appended(p []byte) {
	b.data = p
	b.own = p
	b.limit = len(p)
}

// PutByte 写入单个字节。
func (b *Buffer) PutByte(c byte) {
	b.writable()
	b.appended(append(b.data, c))
}

// PutRaw 原样写入 p，不带长度前缀。
func (b *Buffer) PutRaw(p []byte) {
	b.writable()
	b.appended(append(b.data, p...))
}

// PutUvarint 写入无符号变长整数。
func (b *Buffer) PutUvarint(v uint64) {
	b.writable()
	b.appended(binary.AppendUvarint(b.data, v))
}

// PutVarint 写入 zigzag 变长整数。
func (b *Buffer) PutVarint(v int64) {
	b.writable()
	b.appended(binary.AppendVarint(b.data, v))
}

// PutFixed32 以小端序写入 4 字节。
func (b *Buffer) PutFixed32(v uint32) {
	b.writable()
	b.appended(binary.LittleEndian.AppendUint32(b.data, v))
}

// PutFixed64 以小端序写入 8 字节。
func (b *Buffer) PutFixed64(v uint64) {
	b.writable()
	b.appended(binary.LittleEndian.AppendUint64(b.data, v))
}

// PutBytes 写入带 uvarint 长度前缀的字节串。
func (b *Buffer) PutBytes(p []byte) {
	b.PutUvarint(uint64(len(p)))
	b.PutRaw(p)
}

// PutString 写入带 uvarint 长度前缀的字符串。
func (b *Buffer) PutString(s string) {
	b.PutUvarint(uint64(len(s)))
	b.writable()
	b.appended(append(b.data, s...))
}

// =============================================================================
// 读取
// =============================================================================

// Next 返回接下来 n 个字节的视图并推进 position。
// 返回值与 Buffer 共享底层数组。
func (b *Buffer) Next(n int) ([]byte, error) {
	if n < 0 || n > b.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferUnderflow, n, b.Remaining())
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}

// GetByte 读取单个字节。
func (b *Buffer) GetByte() (byte, error) {
	if b.pos >= b.limit {
		return 0, ErrBufferUnderflow
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// GetUvarint 读取无符号变长整数。
func (b *Buffer) GetUvarint() (uint64, error) {
	v, n := binary.Uvarint(b.data[b.pos:b.limit])
	switch {
	case n == 0:
		return 0, ErrBufferUnderflow
	case n < 0:
		return 0, fmt.Errorf("%w: uvarint overflow", ErrCorrupt)
	}
	b.pos += n
	return v, nil
}

// GetVarint 读取 zigzag 变长整数。
func (b *Buffer) GetVarint() (int64, error) {
	v, n := binary.Varint(b.data[b.pos:b.limit])
	switch {
	case n == 0:
		return 0, ErrBufferUnderflow
	case n < 0:
		return 0, fmt.Errorf("%w: varint overflow", ErrCorrupt)
	}
	b.pos += n
	return v, nil
}

// GetFixed32 以小端序读取 4 字节。
func (b *Buffer) GetFixed32() (uint32, error) {
	p, err := b.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// GetFixed64 以小端序读取 8 字节。
func (b *Buffer) GetFixed64() (uint64, error) {
	p, err := b.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// GetBytesView 读取带长度前缀的字节串，返回共享底层数组的视图。
func (b *Buffer) GetBytesView() ([]byte, error) {
	n, err := b.GetUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(b.Remaining()) {
		return nil, fmt.Errorf("%w: length %d exceeds remaining %d", ErrBufferUnderflow, n, b.Remaining())
	}
	return b.Next(int(n))
}

// GetBytes 读取带长度前缀的字节串，返回独立副本。
func (b *Buffer) GetBytes() ([]byte, error) {
	p, err := b.GetBytesView()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// GetString 读取带长度前缀的字符串。
func (b *Buffer) GetString() (string, error) {
	p, err := b.GetBytesView()
	if err != nil {
		return "", err
	}
	return string(p), nil
}
