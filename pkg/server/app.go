package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"GranStocks/internal/scheduler"
	"GranStocks/internal/usecase"
	"GranStocks/pkg/config"
	xhttp "GranStocks/pkg/http"
	pkgkafka "GranStocks/pkg/kafka"
	applogger "GranStocks/pkg/logger"
)

// Closer is an infrastructure client released last at shutdown.
type Closer struct {
	Name string
	io.Closer
}

// Deps are the long-lived components the App starts and stops.
type Deps struct {
	Logger      *applogger.Logger
	HTTP        *xhttp.Server
	Warm        *usecase.WarmQueue
	Screener    *usecase.ScreenerJob
	Daily       *usecase.DailyJob
	Scheduler   *scheduler.Scheduler // nil when disabled
	Consumer    *pkgkafka.Consumer   // nil when kafka is disabled
	WarmHandler pkgkafka.MessageHandler
	Closers     []Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	d   Deps
	l   *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, d Deps) *App {
	l := d.Logger
	if l == nil {
		l = applogger.NewNop()
	}
	return &App{cfg: cfg, d: d, l: l}
}

// Start launches every background component and the HTTP server.
func (a *App) Start() error {
	a.d.Warm.Start()
	a.l.Info("warm queue started")

	if a.d.Consumer != nil && a.d.WarmHandler != nil {
		a.d.Consumer.RegisterHandler(a.d.WarmHandler)
		if err := a.d.Consumer.Start(); err != nil {
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.d.WarmHandler.Topic()))
	}

	if a.d.Scheduler != nil {
		a.d.Scheduler.Start()
		a.l.Info("scheduler started", applogger.Int("jobs", a.d.Scheduler.Len()))
	}

	if err := a.d.HTTP.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

// Shutdown stops intake first, then drains background work, then releases
// infrastructure clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	if a.d.HTTP != nil {
		if err := a.d.HTTP.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.d.Scheduler != nil {
		if err := a.d.Scheduler.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
		}
	}
	if a.d.Consumer != nil {
		if err := a.d.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.d.Screener != nil {
		if err := a.d.Screener.Drain(ctx); err != nil {
			a.l.Warn("screener drain error", applogger.Error(err))
		}
	}
	if a.d.Warm != nil {
		if err := a.d.Warm.Stop(ctx); err != nil {
			a.l.Warn("warm queue stop error", applogger.Error(err))
		}
	}

	a.release()
	a.l.Info("shutdown complete")
	return nil
}

// RunDaily executes one daily pass outside the scheduler and releases the
// infrastructure clients afterwards. Nothing else is started.
func (a *App) RunDaily(ctx context.Context, date string) (usecase.DailyReport, error) {
	defer a.release()
	if a.d.Daily == nil {
		return usecase.DailyReport{}, errors.New("daily job not configured")
	}
	rep, err := a.d.Daily.RunDailyJob(ctx, date)
	if err != nil {
		return rep, err
	}
	a.l.Info("daily run finished",
		applogger.String("date", date),
		applogger.Int("symbols", rep.Symbols),
		applogger.Int("processed", rep.Processed),
		applogger.Int("skipped", rep.Skipped),
		applogger.Int("failed", rep.Failed))
	return rep, nil
}

func (a *App) release() {
	for i := len(a.d.Closers) - 1; i >= 0; i-- {
		c := a.d.Closers[i]
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
}
