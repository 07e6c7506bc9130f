package xbufpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgrid/pkg/serialization/xcodec"
)

// =============================================================================
// 构造测试
// =============================================================================

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(WithSize(-1))
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = New(WithBufferSize(-1))
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestNew_DefaultIsElastic(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	assert.False(t, p.Bounded())
}

// =============================================================================
// 弹性模式测试
// =============================================================================

func TestElastic_AcquireReleaseCounts(t *testing.T) {
	p, err := New(WithBufferSize(32))
	require.NoError(t, err)

	buf, err := p.Acquire(context.Background())
	require.NoError(t, err)
	buf.PutString("hello")
	assert.Equal(t, int64(1), p.Stats().InUse)

	p.Release(buf)
	assert.Equal(t, 0, buf.Len())
	st := p.Stats()
	assert.Equal(t, int64(1), st.Acquired)
	assert.Equal(t, int64(1), st.Released)
	assert.Equal(t, int64(0), st.InUse)
}

func TestElastic_DropsOversizedBuffer(t *testing.T) {
	p, err := New(WithBufferSize(8), WithMaxRetainedSize(16))
	require.NoError(t, err)

	buf, err := p.Acquire(context.Background())
	require.NoError(t, err)
	buf.PutRaw(make([]byte, 64))
	p.Release(buf)

	assert.Equal(t, int64(1), p.Stats().Dropped)
}

// =============================================================================
// 有界模式测试
// =============================================================================

func TestBounded_BlocksWhenExhausted(t *testing.T) {
	p, err := New(WithSize(1))
	require.NoError(t, err)

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *xcodec.Buffer)
	go func() {
		buf, err := p.Acquire(context.Background())
		if err == nil {
			got <- buf
		}
	}()
	p.Release(first)

	select {
	case buf := <-got:
		assert.Same(t, first, buf)
		p.Release(buf)
	case <-time.After(time.Second):
		t.Fatal("blocked acquire was not woken by release")
	}
}

func TestBounded_CloseWakesWaiters(t *testing.T) {
	p, err := New(WithSize(1))
	require.NoError(t, err)
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Close())
	assert.ErrorIs(t, <-errCh, ErrClosed)

	p.Release(held)
	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, p.Close())
}

func TestBounded_ConcurrentNeverExceedsSize(t *testing.T) {
	const size = 4
	p, err := New(WithSize(size))
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.With(context.Background(), func(*xcodec.Buffer) error {
				mu.Lock()
				current++
				peak = max(peak, current)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, size)
	assert.Equal(t, int64(0), p.Stats().InUse)
}

// =============================================================================
// With 测试
// =============================================================================

func TestWith_ReleasesOnError(t *testing.T) {
	p, err := New(WithSize(1))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = p.With(context.Background(), func(*xcodec.Buffer) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), p.Stats().InUse)
}

func TestWith_ReleasesOnPanic(t *testing.T) {
	p, err := New(WithSize(1))
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = p.With(context.Background(), func(*xcodec.Buffer) error { panic("boom") })
	})
	assert.Equal(t, int64(0), p.Stats().InUse)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	buf, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(buf)
}

func TestAcquire_NilContext(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	_, err = p.Acquire(nil) //nolint:staticcheck // 测试 nil ctx 防御
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRelease_Nil(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	p.Release(nil)
	assert.Equal(t, int64(0), p.Stats().Released)
}
