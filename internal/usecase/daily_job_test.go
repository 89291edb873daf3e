package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
)

type fakeDailyHistory struct {
	fakeWindow
	appended []string
}

func (h *fakeDailyHistory) AppendLatestCandle(_ context.Context, symbol string, _ models.AssetType) error {
	h.appended = append(h.appended, symbol)
	if _, ok := h.series[symbol]; !ok {
		return models.ErrNoData
	}
	return nil
}

func TestDailyJobSnapshotsOncePerDate(t *testing.T) {
	ctx := context.Background()
	states := newMemStates()
	for _, sym := range []string{"AAPL", "GONE"} {
		require.NoError(t, states.Upsert(ctx, &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: sym, Status: models.CacheReady}))
	}
	require.NoError(t, states.Upsert(ctx, &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: "PENDING", Status: models.CachePending}))

	hist := &fakeDailyHistory{fakeWindow: fakeWindow{series: map[string]*models.CandleSeries{
		"AAPL":    dailyBars("AAPL", 300, 0.001),
		"PENDING": dailyBars("PENDING", 300, 0.001),
	}}}
	snaps := newMemSnaps()
	j := NewDailyJob(hist, states, snaps)

	rep, err := j.RunDailyJob(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DailyReport{Symbols: 2, Processed: 1, Failed: 1}, rep)
	assert.Equal(t, []string{"AAPL", "GONE"}, hist.appended)
	require.Len(t, snaps.indicators, 1)
	require.Len(t, snaps.preds, 3)
	for _, p := range snaps.preds {
		assert.Equal(t, "AAPL", p.Symbol)
	}

	rep, err = j.RunDailyJob(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Zero(t, rep.Processed)
	assert.Len(t, snaps.preds, 3)
}

func TestDailyJobLimitAndExplicitDate(t *testing.T) {
	ctx := context.Background()
	states := newMemStates()
	hist := &fakeDailyHistory{fakeWindow: fakeWindow{series: map[string]*models.CandleSeries{}}}
	for _, sym := range []string{"A", "B", "C"} {
		hist.series[sym] = dailyBars(sym, 120, 0.001)
		require.NoError(t, states.Upsert(ctx, &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: sym, Status: models.CacheReady}))
	}
	snaps := newMemSnaps()
	j := NewDailyJob(hist, states, snaps, WithDailyLimit(2))

	rep, err := j.RunDailyJob(ctx, "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Processed)
	ok, err := snaps.HasIndicatorSnapshot(ctx, "A", "2024-06-03")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = snaps.HasIndicatorSnapshot(ctx, "C", "2024-06-03")
	assert.False(t, ok)
}

func TestDailyJobStopsOnCancel(t *testing.T) {
	states := newMemStates()
	require.NoError(t, states.Upsert(context.Background(), &models.SymbolCacheState{AssetType: models.AssetStock, Symbol: "AAPL", Status: models.CacheReady}))
	j := NewDailyJob(&fakeDailyHistory{}, states, newMemSnaps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := j.RunDailyJob(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}
