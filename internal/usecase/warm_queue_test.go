package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
)

type recordingBackfiller struct {
	mu    sync.Mutex
	calls []string
	at    []time.Time
	err   error
}

func (b *recordingBackfiller) BackfillSymbol(_ context.Context, symbol string, _ models.AssetType, _ int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, symbol)
	b.at = append(b.at, time.Now())
	return 10, b.err
}

func (b *recordingBackfiller) symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func TestWarmQueueEnqueueDedupesAndBounds(t *testing.T) {
	q := NewWarmQueue(2, &recordingBackfiller{}, newMemStates())

	assert.True(t, q.Enqueue(models.WarmRequest{Symbol: "aapl"}))
	assert.False(t, q.Enqueue(models.WarmRequest{Symbol: "AAPL", AssetType: models.AssetStock}), "duplicate")
	assert.True(t, q.Enqueue(models.WarmRequest{Symbol: "AAPL", AssetType: models.AssetCrypto}))
	assert.False(t, q.Enqueue(models.WarmRequest{Symbol: "MSFT"}), "full")
	assert.Equal(t, 2, q.Len())
}

func TestWarmQueueProcessesInOrderWithPacing(t *testing.T) {
	bf := &recordingBackfiller{}
	q := NewWarmQueue(8, bf, newMemStates(), WithWarmDelay(50*time.Millisecond))
	for _, s := range []string{"AAPL", "MSFT", "NVDA"} {
		require.True(t, q.Enqueue(models.WarmRequest{Symbol: s}))
	}
	q.Start()
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	require.Eventually(t, func() bool { return len(bf.symbols()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, bf.symbols())

	// one backfill per window: three runs span more than one full window
	bf.mu.Lock()
	defer bf.mu.Unlock()
	assert.GreaterOrEqual(t, bf.at[2].Sub(bf.at[0]), 45*time.Millisecond)
}

func TestWarmQueueSkipsReadyAndRecentlyFailed(t *testing.T) {
	ctx := context.Background()
	states := newMemStates()
	now := time.Now()
	require.NoError(t, states.Upsert(ctx, &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: "READY", Status: models.CacheReady}))
	require.NoError(t, states.Upsert(ctx, &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: "RECENT", Status: models.CacheFailed, LastAttemptAt: now}))
	require.NoError(t, states.Upsert(ctx, &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: "OLD", Status: models.CacheFailed, LastAttemptAt: now.Add(-2 * time.Hour)}))

	bf := &recordingBackfiller{}
	q := NewWarmQueue(8, bf, states, WithWarmDelay(time.Millisecond), WithFailedBackoff(time.Hour))
	for _, s := range []string{"READY", "RECENT", "OLD", "NEW"} {
		require.True(t, q.Enqueue(models.WarmRequest{Symbol: s}))
	}
	q.Start()
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	require.Eventually(t, func() bool { return len(bf.symbols()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"OLD", "NEW"}, bf.symbols())
}

func TestWarmQueueFailureDoesNotStopWorker(t *testing.T) {
	bf := &recordingBackfiller{err: errors.New("boom")}
	q := NewWarmQueue(8, bf, newMemStates(), WithWarmDelay(time.Millisecond))
	q.Start()
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	require.True(t, q.Enqueue(models.WarmRequest{Symbol: "A"}))
	require.True(t, q.Enqueue(models.WarmRequest{Symbol: "B"}))
	require.Eventually(t, func() bool { return len(bf.symbols()) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWarmQueueStop(t *testing.T) {
	q := NewWarmQueue(8, &recordingBackfiller{}, newMemStates())
	q.Start()
	q.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
	require.NoError(t, q.Stop(ctx))
	assert.False(t, q.Enqueue(models.WarmRequest{Symbol: "AAPL"}))
}
