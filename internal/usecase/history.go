package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/domain/service"
	"GranStocks/pkg/logger"
)

// History keeps the durable daily price store filled and serves windows
// from it, falling back to live data when coverage is thin.
type History struct {
	source        service.CandleSource
	bars          repository.PriceHistory
	states        repository.SymbolStates
	events        repository.EventPublisher
	coverage      float64
	backfillYears int
	log           *logger.Logger
	now           func() time.Time
}

type HistoryOption func(*History)

// WithCoverageRatio sets the share of expected trading days that must be
// stored before a window is served from the store.
func WithCoverageRatio(r float64) HistoryOption {
	return func(h *History) {
		if r > 0 && r <= 1 {
			h.coverage = r
		}
	}
}

func WithBackfillYears(y int) HistoryOption {
	return func(h *History) {
		if y > 0 {
			h.backfillYears = y
		}
	}
}

func WithHistoryEvents(p repository.EventPublisher) HistoryOption {
	return func(h *History) { h.events = p }
}

func WithHistoryLogger(l *logger.Logger) HistoryOption {
	return func(h *History) {
		if l != nil {
			h.log = l
		}
	}
}

func NewHistory(source service.CandleSource, bars repository.PriceHistory, states repository.SymbolStates, opts ...HistoryOption) *History {
	h := &History{
		source:        source,
		bars:          bars,
		states:        states,
		events:        repository.NopPublisher{},
		coverage:      0.6,
		backfillYears: 5,
		log:           logger.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BackfillSymbol fetches years of live history and upserts every bar. It is
// idempotent; the returned count is the number of bars written.
func (h *History) BackfillSymbol(ctx context.Context, symbol string, assetType models.AssetType, years int) (int, error) {
	symbol = models.NormalizeSymbol(symbol)
	if years <= 0 {
		years = h.backfillYears
	}
	st := h.loadState(ctx, symbol, assetType)
	st.LastAttemptAt = h.now().UTC()

	s, err := h.source.GetCandlesLive(ctx, models.CandlesRequest{
		Symbol:    symbol,
		AssetType: assetType,
		Range:     models.RangeForYears(years),
	})
	if err != nil {
		h.fail(ctx, st, err)
		return 0, fmt.Errorf("backfill %s: %w", symbol, err)
	}

	n, err := h.bars.UpsertBars(ctx, models.PriceBarsFromSeries(assetType, symbol, s))
	if err != nil {
		h.fail(ctx, st, err)
		return 0, fmt.Errorf("backfill %s: %w", symbol, err)
	}
	if err := h.markReady(ctx, st); err != nil {
		return n, err
	}

	h.log.Info("history backfilled",
		logger.String("symbol", symbol),
		logger.String("asset_type", string(assetType)),
		logger.Int("bars", n),
		logger.String("source", s.Source))
	publishEvent(ctx, h.events, h.log, models.EventHistoryBackfilled, string(assetType)+":"+symbol, models.HistoryBackfilledPayload{
		Symbol:    symbol,
		AssetType: assetType,
		Bars:      st.BarCount,
		Earliest:  st.EarliestDate,
		Latest:    st.LatestDate,
	})
	return n, nil
}

// AppendLatestCandle upserts the most recent daily bar.
func (h *History) AppendLatestCandle(ctx context.Context, symbol string, assetType models.AssetType) error {
	symbol = models.NormalizeSymbol(symbol)
	s, err := h.source.GetCandlesLive(ctx, models.CandlesRequest{Symbol: symbol, AssetType: assetType, Range: models.Range5D})
	if err != nil {
		return fmt.Errorf("append latest %s: %w", symbol, err)
	}
	last, ok := s.Last()
	if !ok {
		return fmt.Errorf("append latest %s: %w", symbol, models.ErrNoData)
	}
	bar := models.PriceBar{
		AssetType: assetType,
		Symbol:    symbol,
		Date:      models.TradingDate(last.T),
		Open:      last.O,
		High:      last.H,
		Low:       last.L,
		Close:     last.C,
		Volume:    last.V,
		UpdatedAt: h.now().UTC(),
	}
	if _, err := h.bars.UpsertBars(ctx, []models.PriceBar{bar}); err != nil {
		return fmt.Errorf("append latest %s: %w", symbol, err)
	}
	if inv, ok := h.source.(service.CandleInvalidator); ok {
		if err := inv.InvalidateCandles(ctx, symbol, assetType, models.Range5D); err != nil {
			h.log.Warn("candle cache invalidation failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	st := h.loadState(ctx, symbol, assetType)
	st.LastAttemptAt = h.now().UTC()
	return h.markReady(ctx, st)
}

// GetCandles returns the trailing window of days. Stored rows are served when
// they cover enough of the expected trading days; otherwise live data fills
// the gap and stored rows are the degraded fallback.
func (h *History) GetCandles(ctx context.Context, symbol string, assetType models.AssetType, days int) (*models.CandleSeries, error) {
	symbol = models.NormalizeSymbol(symbol)
	if days <= 0 {
		return nil, &models.ValidationError{Fields: []models.FieldViolation{{Field: "days", Message: "days must be positive"}}}
	}
	fromDate := h.now().UTC().AddDate(0, 0, -days)
	rows, err := h.bars.Range(ctx, assetType, symbol, fromDate.Format(models.DateLayout))
	if err != nil {
		h.log.Error("price history read failed", logger.String("symbol", symbol), logger.Error(err))
		rows = nil
	}
	if len(rows) > 0 && len(rows) >= h.threshold(assetType, days) {
		s := models.SeriesFromPriceBars(symbol, rows)
		s.FromCache = true
		return s, nil
	}

	live, liveErr := h.source.GetCandles(ctx, models.CandlesRequest{
		Symbol:    symbol,
		AssetType: assetType,
		Range:     models.RangeForDays(days),
	})
	if liveErr == nil {
		if _, err := h.bars.UpsertBars(ctx, models.PriceBarsFromSeries(assetType, symbol, live)); err != nil {
			h.log.Warn("opportunistic upsert failed", logger.String("symbol", symbol), logger.Error(err))
		}
		return live.Since(fromDate.Unix()), nil
	}
	if errors.Is(liveErr, context.Canceled) {
		return nil, liveErr
	}
	if len(rows) > 0 {
		h.log.Warn("serving partial stored history",
			logger.String("symbol", symbol),
			logger.Int("rows", len(rows)),
			logger.Error(liveErr))
		s := models.SeriesFromPriceBars(symbol, rows)
		s.FromCache = true
		s.IsStale = true
		return s, nil
	}
	return nil, fmt.Errorf("history %s: %w", symbol, liveErr)
}

// threshold is ceil(coverage * expected trading days in the window).
func (h *History) threshold(assetType models.AssetType, days int) int {
	expected := days
	if assetType != models.AssetCrypto {
		expected = days * 5 / 7
	}
	return int(math.Ceil(h.coverage * float64(expected)))
}

func (h *History) loadState(ctx context.Context, symbol string, assetType models.AssetType) *models.SymbolCacheState {
	st, err := h.states.Get(ctx, assetType, symbol)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.log.Warn("symbol state read failed", logger.String("symbol", symbol), logger.Error(err))
		}
		return &models.SymbolCacheState{AssetType: assetType, Symbol: symbol, Status: models.CachePending}
	}
	return st
}

func (h *History) markReady(ctx context.Context, st *models.SymbolCacheState) error {
	earliest, latest, count, err := h.bars.Coverage(ctx, st.AssetType, st.Symbol)
	if err != nil {
		return fmt.Errorf("coverage %s: %w", st.Symbol, err)
	}
	st.Status = models.CacheReady
	st.EarliestDate, st.LatestDate, st.BarCount = earliest, latest, count
	st.LastSuccessAt = h.now().UTC()
	st.LastError = ""
	if err := h.states.Upsert(ctx, st); err != nil {
		return fmt.Errorf("symbol state %s: %w", st.Symbol, err)
	}
	return nil
}

func (h *History) fail(ctx context.Context, st *models.SymbolCacheState, cause error) {
	st.Status = models.CacheFailed
	st.LastError = cause.Error()
	if err := h.states.Upsert(ctx, st); err != nil {
		h.log.Error("symbol state write failed", logger.String("symbol", st.Symbol), logger.Error(err))
	}
}
