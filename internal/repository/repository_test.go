package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/cache"
	pkgcache "GranStocks/pkg/cache"
	"GranStocks/pkg/database"
)

func newTestDB(t *testing.T) *database.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.NewClient(database.WithDSN(dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.InitSchema(context.Background(), Schema))
	return db
}

func bar(date string, close float64) models.PriceBar {
	return models.PriceBar{
		AssetType: models.AssetStock, Symbol: "AAPL", Date: date,
		Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 100,
	}
}

func TestPriceHistory_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLPriceHistory(newTestDB(t))

	bars := []models.PriceBar{bar("2024-01-02", 10), bar("2024-01-03", 11), bar("2024-01-04", 12)}
	n, err := repo.UpsertBars(ctx, bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// overlapping backfill rewrites the same keys
	_, err = repo.UpsertBars(ctx, []models.PriceBar{bar("2024-01-03", 15), bar("2024-01-05", 13)})
	require.NoError(t, err)

	rows, err := repo.Range(ctx, models.AssetStock, "AAPL", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2024-01-02", rows[0].Date)
	assert.Equal(t, 15.0, rows[1].Close)

	earliest, latest, count, err := repo.Coverage(ctx, models.AssetStock, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", earliest)
	assert.Equal(t, "2024-01-05", latest)
	assert.Equal(t, 4, count)

	rows, err = repo.Range(ctx, models.AssetStock, "AAPL", "2024-01-04")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, _, count, err = repo.Coverage(ctx, models.AssetCrypto, "AAPL")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSymbolStates(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLSymbolStates(newTestDB(t))

	_, err := repo.Get(ctx, models.AssetStock, "MSFT")
	assert.ErrorIs(t, err, models.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, &models.SymbolCacheState{
		AssetType: models.AssetStock, Symbol: "MSFT", Status: models.CachePending, LastAttemptAt: now,
	}))
	require.NoError(t, repo.Upsert(ctx, &models.SymbolCacheState{
		AssetType: models.AssetStock, Symbol: "MSFT", Status: models.CacheReady,
		EarliestDate: "2020-01-02", LatestDate: "2024-01-02", BarCount: 1000,
		LastAttemptAt: now, LastSuccessAt: now,
	}))

	st, err := repo.Get(ctx, models.AssetStock, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, models.CacheReady, st.Status)
	assert.Equal(t, 1000, st.BarCount)
	assert.True(t, st.LastSuccessAt.Equal(now))

	ready, err := repo.ListByStatus(ctx, models.CacheReady)
	require.NoError(t, err)
	assert.Len(t, ready, 1)
	pending, err := repo.ListByStatus(ctx, models.CachePending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJobStates_TryStartConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLJobStates(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	first := &models.JobState{UniverseType: "index", UniverseName: "sp500", RunID: "r1", Total: 10, StartedAt: now, UpdatedAt: now}
	require.NoError(t, repo.TryStart(ctx, first, now.Add(-time.Hour)))

	second := &models.JobState{UniverseType: "index", UniverseName: "sp500", RunID: "r2", Total: 10, StartedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, repo.TryStart(ctx, second, now.Add(-time.Hour)), models.ErrJobRunning)

	require.NoError(t, repo.SaveCursor(ctx, "index", "sp500", "r1", 5))
	got, err := repo.Get(ctx, "index", "sp500")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 5, got.CursorIndex)
	assert.Equal(t, models.JobRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	fin := now.Add(time.Minute)
	got.Status = models.JobCompleted
	got.CursorIndex = 10
	got.FinishedAt = &fin
	got.UpdatedAt = fin
	require.NoError(t, repo.Finish(ctx, got))

	// finished jobs can restart and the cursor resets
	require.NoError(t, repo.TryStart(ctx, second, now.Add(-time.Hour)))
	got, err = repo.Get(ctx, "index", "sp500")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RunID)
	assert.Zero(t, got.CursorIndex)
	assert.Nil(t, got.FinishedAt)
}

func TestJobStates_StaleRunningIsTakenOver(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLJobStates(newTestDB(t))
	old := time.Now().Add(-3 * time.Hour).UTC()

	require.NoError(t, repo.TryStart(ctx, &models.JobState{
		UniverseType: "index", UniverseName: "dow", RunID: "dead", StartedAt: old, UpdatedAt: old,
	}, old.Add(-time.Hour)))

	now := time.Now().UTC()
	require.NoError(t, repo.TryStart(ctx, &models.JobState{
		UniverseType: "index", UniverseName: "dow", RunID: "fresh", StartedAt: now, UpdatedAt: now,
	}, now.Add(-time.Hour)))

	_, err := repo.Get(ctx, "index", "none")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLSnapshots(newTestDB(t))

	has, err := repo.HasIndicatorSnapshot(ctx, "AAPL", "2024-01-02")
	require.NoError(t, err)
	assert.False(t, has)

	snap := models.IndicatorSnapshot{Symbol: "AAPL", Date: "2024-01-02", Bundle: models.IndicatorBundle{Symbol: "AAPL", RSI14: null.FloatFrom(55)}}
	require.NoError(t, repo.SaveIndicatorSnapshot(ctx, snap))
	snap.Bundle.RSI14 = null.FloatFrom(99)
	require.NoError(t, repo.SaveIndicatorSnapshot(ctx, snap))

	got, err := repo.GetIndicatorSnapshot(ctx, "AAPL", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 55.0, got.Bundle.RSI14.Float64)

	require.NoError(t, repo.SavePredictionSnapshots(ctx, []models.PredictionSnapshot{
		{Symbol: "AAPL", Date: "2024-01-02", Prediction: models.Prediction{HorizonDays: 5, Score: 1}},
		{Symbol: "AAPL", Date: "2024-01-02", Prediction: models.Prediction{HorizonDays: 1, Score: 2}},
	}))
	preds, err := repo.ListPredictionSnapshots(ctx, "AAPL", "2024-01-02")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, 1, preds[0].Prediction.HorizonDays)

	for i, sym := range []string{"A", "B", "C"} {
		require.NoError(t, repo.UpsertScreenerSnapshot(ctx, models.ScreenerSnapshot{
			Date: "2024-01-02", UniverseType: "index", UniverseName: "sp500", Symbol: sym,
			Score: float64(50 + i*10), Metrics: models.ScreenerMetrics{Bars: 200},
		}))
	}
	require.NoError(t, repo.UpsertScreenerSnapshot(ctx, models.ScreenerSnapshot{
		Date: "2024-01-02", UniverseType: "index", UniverseName: "sp500", Symbol: "A", Score: 95,
		RiskFlags: []string{"HIGH_VOLATILITY"},
	}))

	list, err := repo.ListScreenerSnapshots(ctx, "index", "sp500", "2024-01-02", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Symbol)
	assert.Equal(t, []string{"HIGH_VOLATILITY"}, list[0].RiskFlags)
	assert.Equal(t, "C", list[1].Symbol)

	date, err := repo.LatestScreenerDate(ctx, "index", "sp500")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", date)
	_, err = repo.LatestScreenerDate(ctx, "index", "none")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLEntryStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLEntryStore(newTestDB(t))

	_, err := store.GetEntry(ctx, "quote:AAPL")
	assert.ErrorIs(t, err, pkgcache.ErrCacheMiss)

	written := time.Now().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, store.PutEntry(ctx, &cache.Entry{
		Key: "quote:AAPL", Payload: []byte(`{"price":1}`), TTLSeconds: 30, WrittenAt: written, Source: "finnhub",
	}))
	e, err := store.GetEntry(ctx, "quote:AAPL")
	require.NoError(t, err)
	assert.Equal(t, "finnhub", e.Source)
	assert.True(t, e.Stale(time.Now()))
	assert.False(t, e.IsStale)

	require.NoError(t, store.MarkStale(ctx, "quote:AAPL"))
	e, err = store.GetEntry(ctx, "quote:AAPL")
	require.NoError(t, err)
	assert.True(t, e.IsStale)
	assert.JSONEq(t, `{"price":1}`, string(e.Payload))
}
