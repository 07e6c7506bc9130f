package xcapacity

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 记账规则测试
// =============================================================================

func TestAccountant_InsertAccounting(t *testing.T) {
	a := New(Restriction{})
	sizes := []int64{10, 20, 30}
	for _, s := range sizes {
		a.Add(s, 0)
	}

	assert.Equal(t, int64(60), a.MemoryUsed())
	assert.Equal(t, int64(3), a.ItemCount())
}

func TestAccountant_ReplaceScenario(t *testing.T) {
	a := New(Restriction{})

	a.Add(40, 0)
	assert.Equal(t, Usage{MemoryUsed: 40, ItemCount: 1}, a.Usage())

	a.Add(42, 40)
	assert.Equal(t, Usage{MemoryUsed: 42, ItemCount: 1}, a.Usage())

	a.Remove(42)
	assert.Equal(t, Usage{}, a.Usage())
}

func TestAccountant_RemoveZeroIsNoop(t *testing.T) {
	a := New(Restriction{})
	a.Add(0, 0)
	assert.Equal(t, int64(1), a.ItemCount())

	a.Remove(0)
	assert.Equal(t, int64(1), a.ItemCount())
	assert.Equal(t, int64(0), a.MemoryUsed())
}

func TestAccountant_ConcurrentMutations(t *testing.T) {
	a := New(Restriction{})
	const workers, perWorker = 16, 1000

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				a.Add(8, 0)
				a.Add(12, 8)
				a.Remove(12)
				a.Add(5, 0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*perWorker*5), a.MemoryUsed())
	assert.Equal(t, int64(workers*perWorker), a.ItemCount())
}

// =============================================================================
// 准入测试
// =============================================================================

func TestAccountant_EnsureCapacityUnlimited(t *testing.T) {
	a := New(Restriction{})
	a.Add(1<<40, 0)
	assert.NoError(t, a.EnsureCapacity(1<<40, nil))
}

func TestAccountant_EnsureCapacityMemoryFirst(t *testing.T) {
	a := New(Restriction{MaxMemoryBytes: 100, MaxItems: 1})
	a.Add(90, 0)

	err := a.EnsureCapacity(20, "x")
	assert.ErrorIs(t, err, ErrMemoryExceeded)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	err = a.EnsureCapacity(5, "x")
	assert.ErrorIs(t, err, ErrItemsExceeded)
}

func TestAccountant_EnsureReplaceCapacity(t *testing.T) {
	a := New(Restriction{MaxMemoryBytes: 100, MaxItems: 1})
	a.Add(90, 0)

	assert.NoError(t, a.EnsureReplaceCapacity(100, 90, "x"))
	assert.ErrorIs(t, a.EnsureReplaceCapacity(101, 90, "x"), ErrMemoryExceeded)
	assert.ErrorIs(t, a.EnsureReplaceCapacity(5, 0, "x"), ErrItemsExceeded)
}

func TestAccountant_CustomPolicy(t *testing.T) {
	deny := errors.New("deny")
	var seen Candidate
	a := New(Restriction{}, WithPolicy(PolicyFunc(func(u Usage, r Restriction, c Candidate) error {
		seen = c
		if c.Object == "blocked" {
			return deny
		}
		return nil
	})))

	assert.ErrorIs(t, a.EnsureCapacity(3, "blocked"), deny)
	assert.Equal(t, Candidate{Size: 3, Object: "blocked"}, seen)
	require.NoError(t, a.EnsureReplaceCapacity(4, 3, "ok"))
	assert.True(t, seen.Replace())
}

func TestRestriction_Unlimited(t *testing.T) {
	assert.True(t, Restriction{}.Unlimited())
	assert.False(t, Restriction{MaxItems: 1}.Unlimited())
	assert.False(t, Restriction{MaxMemoryBytes: 1}.Unlimited())
}

func TestAccountant_Sub(t *testing.T) {
	a := New(Restriction{})
	a.Add(10, 0)
	a.Add(20, 0)
	a.Add(5, 0)

	a.Sub(Usage{MemoryUsed: 30, ItemCount: 2})
	assert.Equal(t, Usage{MemoryUsed: 5, ItemCount: 1}, a.Usage())
}

func TestAccountant_FitsIgnoresCurrentUsage(t *testing.T) {
	a := New(Restriction{MaxMemoryBytes: 100, MaxItems: 2})
	a.Add(90, 0)
	a.Add(5, 0)

	assert.ErrorIs(t, a.EnsureCapacity(20, "k"), ErrCapacityExceeded)
	assert.NoError(t, a.Fits(20, "k"))
	assert.NoError(t, a.Fits(100, "k"))
	assert.ErrorIs(t, a.Fits(101, "k"), ErrMemoryExceeded)

	assert.NoError(t, New(Restriction{}).Fits(1<<40, nil))
}
