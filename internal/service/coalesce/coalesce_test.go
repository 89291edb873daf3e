package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCallsShareOneInvocation(t *testing.T) {
	g := New()
	var calls int32
	release := make(chan struct{})

	fn := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Do(context.Background(), g, "quote:AAPL", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestFailureIsNotCached(t *testing.T) {
	g := New()
	boom := errors.New("boom")

	_, _, err := Do(context.Background(), g, "k", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	v, _, err := Do(context.Background(), g, "k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDifferentKeysRunIndependently(t *testing.T) {
	g := New()
	var calls int32
	fn := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	}
	_, _, _ = Do(context.Background(), g, "a", fn)
	_, _, _ = Do(context.Background(), g, "b", fn)
	assert.Equal(t, int32(2), calls)
}

func TestCallerContextEndsWait(t *testing.T) {
	g := New()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := Do(ctx, g, "slow", func() (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
