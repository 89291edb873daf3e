package service

import (
	"context"

	"GranStocks/internal/domain/models"
)

// MarketDataProvider is one upstream data source. Implementations return a
// *models.ProviderError on any failure and never partial data; operations a
// source does not offer return models.ErrUnsupported.
type MarketDataProvider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error)
	GetOverview(ctx context.Context, symbol string) (*models.Overview, error)
	GetNews(ctx context.Context, symbol string, limit int) (*models.NewsFeed, error)
}

// CandleSource is the read side the history store and jobs depend on.
type CandleSource interface {
	GetCandles(ctx context.Context, req models.CandlesRequest) (*models.CandleSeries, error)
	// GetCandlesLive bypasses cached reads.
	GetCandlesLive(ctx context.Context, req models.CandlesRequest) (*models.CandleSeries, error)
}

// CandleInvalidator is implemented by sources that cache candle windows.
type CandleInvalidator interface {
	// InvalidateCandles marks every cached window of symbol stale except keep.
	InvalidateCandles(ctx context.Context, symbol string, assetType models.AssetType, keep models.Range) error
}

// WarmEnqueuer accepts background backfill requests without blocking.
type WarmEnqueuer interface {
	Enqueue(req models.WarmRequest) bool
}
