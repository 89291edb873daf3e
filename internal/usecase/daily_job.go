package usecase

import (
	"context"
	"fmt"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/services/indicators"
	"GranStocks/internal/services/prediction"
	"GranStocks/pkg/logger"
)

// HistoryReader is the part of History the daily job needs.
type HistoryReader interface {
	CandleWindow
	AppendLatestCandle(ctx context.Context, symbol string, assetType models.AssetType) error
}

// DailyReport summarizes one daily run.
type DailyReport struct {
	Symbols   int
	Processed int
	Skipped   int
	Failed    int
}

// DailyJob refreshes READY symbols and snapshots their indicators and
// predictions once per trading date.
type DailyJob struct {
	history     HistoryReader
	states      repository.SymbolStates
	snaps       repository.Snapshots
	historyDays int
	limit       int
	log         *logger.Logger
	metrics     repository.Metrics
	now         func() time.Time
}

type DailyOption func(*DailyJob)

func WithDailyHistoryDays(days int) DailyOption {
	return func(j *DailyJob) {
		if days > 0 {
			j.historyDays = days
		}
	}
}

// WithDailyLimit caps the number of symbols processed per run; zero means all.
func WithDailyLimit(n int) DailyOption {
	return func(j *DailyJob) {
		if n >= 0 {
			j.limit = n
		}
	}
}

func WithDailyLogger(l *logger.Logger) DailyOption {
	return func(j *DailyJob) {
		if l != nil {
			j.log = l
		}
	}
}

func WithDailyMetrics(m repository.Metrics) DailyOption {
	return func(j *DailyJob) {
		if m != nil {
			j.metrics = m
		}
	}
}

func NewDailyJob(history HistoryReader, states repository.SymbolStates, snaps repository.Snapshots, opts ...DailyOption) *DailyJob {
	j := &DailyJob{
		history:     history,
		states:      states,
		snaps:       snaps,
		historyDays: 400,
		log:         logger.NewNop(),
		metrics:     repository.NopMetrics{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// RunDailyJob processes every READY symbol. Snapshots are keyed by date, or by
// each symbol's latest bar date when date is empty. A failing symbol is logged
// and counted; only a failure to list symbols or a cancelled ctx aborts the run.
func (j *DailyJob) RunDailyJob(ctx context.Context, date string) (DailyReport, error) {
	start := time.Now()
	ready, err := j.states.ListByStatus(ctx, models.CacheReady)
	if err != nil {
		j.metrics.RecordJobRun("daily", "failed")
		return DailyReport{}, fmt.Errorf("list ready symbols: %w", err)
	}

	if j.limit > 0 && len(ready) > j.limit {
		ready = ready[:j.limit]
	}
	rep := DailyReport{Symbols: len(ready)}
	for _, st := range ready {
		if err := ctx.Err(); err != nil {
			j.metrics.RecordJobRun("daily", "failed")
			return rep, err
		}
		skipped, err := j.processSymbol(ctx, st.Symbol, st.AssetType, date)
		switch {
		case err != nil:
			rep.Failed++
			j.log.Warn("daily symbol failed",
				logger.String("symbol", st.Symbol),
				logger.String("asset_type", string(st.AssetType)),
				logger.Error(err))
		case skipped:
			rep.Skipped++
		default:
			rep.Processed++
		}
	}

	j.metrics.RecordJobRun("daily", "completed")
	j.log.Info("daily job finished",
		logger.Int("symbols", rep.Symbols),
		logger.Int("processed", rep.Processed),
		logger.Int("skipped", rep.Skipped),
		logger.Int("failed", rep.Failed),
		logger.Duration("elapsed", time.Since(start)))
	return rep, nil
}

func (j *DailyJob) processSymbol(ctx context.Context, symbol string, assetType models.AssetType, date string) (bool, error) {
	if err := j.history.AppendLatestCandle(ctx, symbol, assetType); err != nil {
		// stored bars are still usable for today's snapshot
		j.log.Warn("append latest candle failed", logger.String("symbol", symbol), logger.Error(err))
	}

	series, err := j.history.GetCandles(ctx, symbol, assetType, j.historyDays)
	if err != nil {
		return false, err
	}
	bundle := indicators.ComputeAll(series)
	if bundle.Bars == 0 {
		return false, fmt.Errorf("daily %s: %w", symbol, models.ErrNoData)
	}

	if date == "" {
		date = bundle.AsOf
	}
	exists, err := j.snaps.HasIndicatorSnapshot(ctx, bundle.Symbol, date)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	if err := j.snaps.SaveIndicatorSnapshot(ctx, models.IndicatorSnapshot{
		Symbol:    bundle.Symbol,
		Date:      date,
		Bundle:    bundle,
		CreatedAt: j.now().UTC(),
	}); err != nil {
		return false, err
	}

	preds, err := prediction.PredictAll(bundle)
	if err != nil {
		return false, err
	}
	snaps := make([]models.PredictionSnapshot, 0, len(preds))
	for _, p := range preds {
		snaps = append(snaps, models.PredictionSnapshot{Symbol: bundle.Symbol, Date: date, Prediction: p})
	}
	return false, j.snaps.SavePredictionSnapshots(ctx, snaps)
}
