package repository

import (
	"context"
	"time"

	"GranStocks/internal/domain/models"
)

// PriceHistory persists daily bars keyed by (assetType, symbol, date).
type PriceHistory interface {
	// UpsertBars writes bars idempotently and returns the number written.
	UpsertBars(ctx context.Context, bars []models.PriceBar) (int, error)
	// Range returns bars with date >= fromDate in ascending order.
	Range(ctx context.Context, assetType models.AssetType, symbol, fromDate string) ([]models.PriceBar, error)
	// Coverage returns the stored bounds and row count.
	Coverage(ctx context.Context, assetType models.AssetType, symbol string) (earliest, latest string, count int, err error)
}

// SymbolStates tracks backfill state per (assetType, symbol).
type SymbolStates interface {
	// Get returns models.ErrNotFound when the symbol was never seen.
	Get(ctx context.Context, assetType models.AssetType, symbol string) (*models.SymbolCacheState, error)
	Upsert(ctx context.Context, st *models.SymbolCacheState) error
	ListByStatus(ctx context.Context, status models.CacheStatus) ([]models.SymbolCacheState, error)
}

// JobStates stores resumable screener progress.
type JobStates interface {
	// TryStart atomically moves the job to RUNNING with cursor 0. A job that is
	// RUNNING and was updated after staleBefore yields models.ErrJobRunning.
	TryStart(ctx context.Context, st *models.JobState, staleBefore time.Time) error
	SaveCursor(ctx context.Context, universeType, universeName, runID string, cursor int) error
	Finish(ctx context.Context, st *models.JobState) error
	// Get returns models.ErrNotFound when the universe never ran.
	Get(ctx context.Context, universeType, universeName string) (*models.JobState, error)
}

// Snapshots stores derived per-day artifacts.
type Snapshots interface {
	HasIndicatorSnapshot(ctx context.Context, symbol, date string) (bool, error)
	SaveIndicatorSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error
	SavePredictionSnapshots(ctx context.Context, snaps []models.PredictionSnapshot) error
	UpsertScreenerSnapshot(ctx context.Context, snap models.ScreenerSnapshot) error
	// ListScreenerSnapshots returns rows ordered by score descending.
	ListScreenerSnapshots(ctx context.Context, universeType, universeName, date string, limit int) ([]models.ScreenerSnapshot, error)
	LatestScreenerDate(ctx context.Context, universeType, universeName string) (string, error)
}

// EventPublisher emits domain events.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.Event) error
	Close() error
}

// Metrics is the subset of the prometheus recorder used by the core.
type Metrics interface {
	RecordProviderCall(provider, op, outcome string, seconds float64)
	RecordCacheLookup(tier, outcome string)
	RecordLimiterWait(provider string, seconds float64)
	SetWarmQueueDepth(n int)
	RecordWarmResult(outcome string)
	SetScreenerProgress(universe string, cursor, total int)
	RecordJobRun(job, outcome string)
	RecordError(kind string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordProviderCall(string, string, string, float64) {}
func (NopMetrics) RecordCacheLookup(string, string)                   {}
func (NopMetrics) RecordLimiterWait(string, float64)                  {}
func (NopMetrics) SetWarmQueueDepth(int)                              {}
func (NopMetrics) RecordWarmResult(string)                            {}
func (NopMetrics) SetScreenerProgress(string, int, int)               {}
func (NopMetrics) RecordJobRun(string, string)                        {}
func (NopMetrics) RecordError(string)                                 {}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) error { return nil }
func (NopPublisher) Close() error                                { return nil }
