package xcapacity

import "fmt"

// Restriction 是容量上限配置。0 表示不限制。
type Restriction struct {
	MaxMemoryBytes int64 `koanf:"max_memory_bytes"`
	MaxItems       int64 `koanf:"max_items"`
}

// Unlimited 报告是否没有任何上限。
func (r Restriction) Unlimited() bool {
	return r.MaxMemoryBytes <= 0 && r.MaxItems <= 0
}

// Usage 是记账器的用量快照。
type Usage struct {
	MemoryUsed int64
	ItemCount  int64
}

// Candidate 描述一次待准入的写入。
type Candidate struct {
	// Size 是新记录的字节数。
	Size int64

	// PreviousSize 是被替换记录的字节数，0 表示新插入。
	PreviousSize int64

	// Object 是被写入的对象，供自定义策略使用，可以为 nil。
	Object any
}

// Replace 报告本次写入是否为替换。
func (c Candidate) Replace() bool { return c.PreviousSize > 0 }

// Policy 决定候选写入能否被准入。返回非 nil 错误即拒绝。
type Policy interface {
	Admit(u Usage, r Restriction, c Candidate) error
}

// PolicyFunc 是函数形式的 Policy。
type PolicyFunc func(u Usage, r Restriction, c Candidate) error

// Admit 实现 Policy。
func (f PolicyFunc) Admit(u Usage, r Restriction, c Candidate) error {
	return f(u, r, c)
}

// RejectPolicy 在超出任一上限时拒绝写入：先检查内存，再检查条目数。
// 替换不增加条目数，只按净增字节检查内存。
var RejectPolicy Policy = PolicyFunc(rejectOverflow)

func rejectOverflow(u Usage, r Restriction, c Candidate) error {
	if r.MaxMemoryBytes > 0 {
		after := u.MemoryUsed - c.PreviousSize + c.Size
		if after > r.MaxMemoryBytes {
			return fmt.Errorf("%w: %d + %d bytes exceeds limit %d",
				ErrMemoryExceeded, u.MemoryUsed-c.PreviousSize, c.Size, r.MaxMemoryBytes)
		}
	}
	if r.MaxItems > 0 && !c.Replace() && u.ItemCount+1 > r.MaxItems {
		return fmt.Errorf("%w: %d items at limit %d", ErrItemsExceeded, u.ItemCount, r.MaxItems)
	}
	return nil
}
