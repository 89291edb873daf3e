package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/services/screener"
	"GranStocks/pkg/config"
	"GranStocks/pkg/logger"
	"GranStocks/pkg/util"
)

// CandleWindow serves a trailing window of daily bars.
type CandleWindow interface {
	GetCandles(ctx context.Context, symbol string, assetType models.AssetType, days int) (*models.CandleSeries, error)
}

// ScreenerJob scores every symbol of a universe and records resumable progress.
type ScreenerJob struct {
	history     CandleWindow
	jobs        repository.JobStates
	snaps       repository.Snapshots
	events      repository.EventPublisher
	weights     config.Weights
	cursorEvery int
	staleAfter  time.Duration
	historyDays int
	log         *logger.Logger
	metrics     repository.Metrics
	now         func() time.Time

	wg sync.WaitGroup
}

type ScreenerOption func(*ScreenerJob)

func WithWeights(w config.Weights) ScreenerOption {
	return func(j *ScreenerJob) { j.weights = w }
}

// WithCursorEvery persists the cursor after every n symbols.
func WithCursorEvery(n int) ScreenerOption {
	return func(j *ScreenerJob) {
		if n > 0 {
			j.cursorEvery = n
		}
	}
}

// WithStaleAfter lets a new run take over a RUNNING job not updated for d.
func WithStaleAfter(d time.Duration) ScreenerOption {
	return func(j *ScreenerJob) {
		if d > 0 {
			j.staleAfter = d
		}
	}
}

func WithScreenerHistoryDays(days int) ScreenerOption {
	return func(j *ScreenerJob) {
		if days > 0 {
			j.historyDays = days
		}
	}
}

func WithScreenerEvents(p repository.EventPublisher) ScreenerOption {
	return func(j *ScreenerJob) { j.events = p }
}

func WithScreenerLogger(l *logger.Logger) ScreenerOption {
	return func(j *ScreenerJob) {
		if l != nil {
			j.log = l
		}
	}
}

func WithScreenerMetrics(m repository.Metrics) ScreenerOption {
	return func(j *ScreenerJob) {
		if m != nil {
			j.metrics = m
		}
	}
}

func NewScreenerJob(history CandleWindow, jobs repository.JobStates, snaps repository.Snapshots, opts ...ScreenerOption) *ScreenerJob {
	j := &ScreenerJob{
		history:     history,
		jobs:        jobs,
		snaps:       snaps,
		events:      repository.NopPublisher{},
		weights:     defaultWeights(),
		cursorEvery: 5,
		staleAfter:  2 * time.Hour,
		historyDays: 365,
		log:         logger.NewNop(),
		metrics:     repository.NopMetrics{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func defaultWeights() config.Weights {
	c, err := config.Default()
	if err != nil {
		return config.Weights{Base: 50}
	}
	return c.Screener.Weights
}

// RunScreenerJob scores the universe synchronously. An empty date means today (UTC).
func (j *ScreenerJob) RunScreenerJob(ctx context.Context, u models.Universe, date string) (*models.JobState, error) {
	st, err := j.start(ctx, u)
	if err != nil {
		return nil, err
	}
	return j.execute(ctx, st, u, j.dateOrToday(date))
}

// StartScreenerJob claims the job and scores in the background. The claim is
// synchronous so a conflicting start is reported to the caller.
func (j *ScreenerJob) StartScreenerJob(ctx context.Context, u models.Universe, date string) (*models.JobState, error) {
	st, err := j.start(ctx, u)
	if err != nil {
		return nil, err
	}
	snapshot := *st
	date = j.dateOrToday(date)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		if _, err := j.execute(context.WithoutCancel(ctx), st, u, date); err != nil {
			j.log.Error("screener run failed", logger.String("universe", u.Key()), logger.Error(err))
		}
	}()
	return &snapshot, nil
}

// Status returns the persisted progress of a universe.
func (j *ScreenerJob) Status(ctx context.Context, universeType, universeName string) (*models.JobState, error) {
	return j.jobs.Get(ctx, universeType, universeName)
}

// Results lists the ranked snapshots of date, or of the latest scored date
// when date is empty.
func (j *ScreenerJob) Results(ctx context.Context, universeType, universeName, date string, limit int) (string, []models.ScreenerSnapshot, error) {
	if date == "" {
		latest, err := j.snaps.LatestScreenerDate(ctx, universeType, universeName)
		if err != nil {
			return "", nil, err
		}
		date = latest
	}
	rows, err := j.snaps.ListScreenerSnapshots(ctx, universeType, universeName, date, limit)
	return date, rows, err
}

// Drain waits for background runs to finish or for ctx to end.
func (j *ScreenerJob) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain screener runs: %w", ctx.Err())
	}
}

func (j *ScreenerJob) start(ctx context.Context, u models.Universe) (*models.JobState, error) {
	if u.Type == "" || u.Name == "" {
		return nil, &models.ValidationError{Fields: []models.FieldViolation{{Field: "universe", Message: "universe type and name are required"}}}
	}
	now := j.now().UTC()
	st := &models.JobState{
		UniverseType: u.Type,
		UniverseName: u.Name,
		RunID:        uuid.NewString(),
		Total:        len(u.Symbols),
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := j.jobs.TryStart(ctx, st, now.Add(-j.staleAfter)); err != nil {
		if errors.Is(err, models.ErrJobRunning) {
			return nil, fmt.Errorf("screener %s: %w", u.Key(), err)
		}
		return nil, fmt.Errorf("start screener %s: %w", u.Key(), err)
	}
	j.log.Info("screener started",
		logger.String("universe", u.Key()),
		logger.String("run_id", st.RunID),
		logger.Int("symbols", st.Total))
	return st, nil
}

func (j *ScreenerJob) execute(ctx context.Context, st *models.JobState, u models.Universe, date string) (*models.JobState, error) {
	assetType := u.AssetType()
	scored, failed := 0, 0

	for i, symbol := range u.Symbols {
		if err := ctx.Err(); err != nil {
			return j.finish(st, i, err, scored, failed, date)
		}
		if err := j.scoreSymbol(ctx, u, assetType, symbol, date); err != nil {
			failed++
			j.log.Warn("screener symbol failed",
				logger.String("universe", u.Key()),
				logger.String("symbol", symbol),
				logger.Error(err))
		} else {
			scored++
		}

		cursor := i + 1
		j.metrics.SetScreenerProgress(u.Key(), cursor, st.Total)
		if cursor%j.cursorEvery == 0 {
			if err := j.jobs.SaveCursor(ctx, st.UniverseType, st.UniverseName, st.RunID, cursor); err != nil {
				j.log.Warn("screener cursor save failed", logger.String("universe", u.Key()), logger.Error(err))
			}
		}
	}
	return j.finish(st, len(u.Symbols), nil, scored, failed, date)
}

func (j *ScreenerJob) scoreSymbol(ctx context.Context, u models.Universe, assetType models.AssetType, symbol, date string) error {
	series, err := j.history.GetCandles(ctx, symbol, assetType, j.historyDays)
	if err != nil {
		return err
	}
	m := screener.ComputeMetrics(series)
	return j.snaps.UpsertScreenerSnapshot(ctx, models.ScreenerSnapshot{
		Date:         date,
		UniverseType: u.Type,
		UniverseName: u.Name,
		Symbol:       models.NormalizeSymbol(symbol),
		Score:        screener.Score(m, j.weights),
		Metrics:      m,
		RiskFlags:    screener.RiskFlags(m),
	})
}

func (j *ScreenerJob) finish(st *models.JobState, cursor int, cause error, scored, failed int, date string) (*models.JobState, error) {
	// the run's own ctx may be gone; the terminal state still has to land
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := j.now().UTC()
	st.CursorIndex = cursor
	st.UpdatedAt = now
	st.FinishedAt = &now
	st.Status = models.JobCompleted
	outcome := "completed"
	if cause != nil {
		st.Status = models.JobFailed
		st.LastError = cause.Error()
		outcome = "failed"
	}
	j.metrics.RecordJobRun("screener", outcome)
	if err := j.jobs.Finish(ctx, st); err != nil {
		return st, fmt.Errorf("finish screener %s/%s: %w", st.UniverseType, st.UniverseName, err)
	}

	j.log.Info("screener finished",
		logger.String("universe", st.UniverseType+"/"+st.UniverseName),
		logger.String("status", string(st.Status)),
		logger.Int("scored", scored),
		logger.Int("failed", failed))
	if cause != nil {
		return st, cause
	}
	publishEvent(ctx, j.events, j.log, models.EventScreenerCompleted, st.UniverseType+"/"+st.UniverseName, models.ScreenerCompletedPayload{
		UniverseType: st.UniverseType,
		UniverseName: st.UniverseName,
		Date:         date,
		RunID:        st.RunID,
		Scored:       scored,
		Failed:       failed,
	})
	return st, nil
}

func (j *ScreenerJob) dateOrToday(date string) string {
	return util.DayOrToday(date, j.now())
}
