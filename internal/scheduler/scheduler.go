// Package scheduler triggers the daily and screener jobs on cron specs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/usecase"
	"GranStocks/pkg/logger"
)

// DailyRunner runs the nightly snapshot job.
type DailyRunner interface {
	RunDailyJob(ctx context.Context, date string) (usecase.DailyReport, error)
}

// ScreenerRunner scores one universe synchronously.
type ScreenerRunner interface {
	RunScreenerJob(ctx context.Context, u models.Universe, date string) (*models.JobState, error)
}

// UniverseSource resolves "type/name" keys.
type UniverseSource interface {
	Lookup(key string) (models.Universe, error)
}

// Config holds cron specs in the scheduler's timezone.
type Config struct {
	Timezone  string
	DailyJob  string
	Screener  string
	Universes []string
}

// Scheduler owns a gocron scheduler. Jobs run in singleton mode so a slow run
// is never overlapped by the next tick.
type Scheduler struct {
	cron      *gocron.Scheduler
	cfg       Config
	daily     DailyRunner
	screener  ScreenerRunner
	universes UniverseSource
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, daily DailyRunner, screener ScreenerRunner, universes UniverseSource, l *logger.Logger) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
	}
	if l == nil {
		l = logger.NewNop()
	}
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      cron,
		cfg:       cfg,
		daily:     daily,
		screener:  screener,
		universes: universes,
		log:       l,
		ctx:       ctx,
		cancel:    cancel,
	}
	if err := s.register(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) register() error {
	if s.cfg.DailyJob != "" && s.daily != nil {
		if _, err := s.cron.Cron(s.cfg.DailyJob).Tag("daily").Do(s.track(s.RunDaily)); err != nil {
			return fmt.Errorf("schedule daily job %q: %w", s.cfg.DailyJob, err)
		}
	}
	if s.cfg.Screener != "" && s.screener != nil && len(s.cfg.Universes) > 0 {
		if _, err := s.cron.Cron(s.cfg.Screener).Tag("screener").Do(s.track(s.RunScreeners)); err != nil {
			return fmt.Errorf("schedule screener %q: %w", s.cfg.Screener, err)
		}
	}
	return nil
}

func (s *Scheduler) track(fn func(context.Context)) func() {
	return func() {
		s.wg.Add(1)
		defer s.wg.Done()
		fn(s.ctx)
	}
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return s.cron.Len() }

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	for _, j := range s.cron.Jobs() {
		s.log.Info("job scheduled",
			logger.Strings("tags", j.Tags()),
			logger.Time("next_run", j.NextRun()))
	}
}

// Stop halts ticking, cancels running jobs and waits for them to return or
// for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunDaily runs the daily job once.
func (s *Scheduler) RunDaily(ctx context.Context) {
	rep, err := s.daily.RunDailyJob(ctx, "")
	if err != nil {
		s.log.Error("scheduled daily job failed", logger.Error(err))
		return
	}
	s.log.Info("scheduled daily job done",
		logger.Int("processed", rep.Processed),
		logger.Int("failed", rep.Failed))
}

// RunScreeners scores every configured universe in order.
func (s *Scheduler) RunScreeners(ctx context.Context) {
	for _, key := range s.cfg.Universes {
		if ctx.Err() != nil {
			return
		}
		u, err := s.universes.Lookup(key)
		if err != nil {
			s.log.Error("scheduled screener skipped", logger.String("universe", key), logger.Error(err))
			continue
		}
		st, err := s.screener.RunScreenerJob(ctx, u, "")
		switch {
		case errors.Is(err, models.ErrJobRunning):
			s.log.Warn("scheduled screener already running", logger.String("universe", key))
		case err != nil:
			s.log.Error("scheduled screener failed", logger.String("universe", key), logger.Error(err))
		default:
			s.log.Info("scheduled screener done",
				logger.String("universe", key),
				logger.String("status", string(st.Status)))
		}
	}
}
