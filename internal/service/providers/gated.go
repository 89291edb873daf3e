package providers

import (
	"context"
	"errors"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/domain/service"
	"GranStocks/internal/service/ratelimit"
	"GranStocks/pkg/logger"
)

// Gated wraps a provider with its limiter chain, a per-call deadline and
// call metrics.
type Gated struct {
	next    service.MarketDataProvider
	limiter *ratelimit.Limiter
	timeout time.Duration
	metrics repository.Metrics
	log     *logger.Logger
}

var _ service.MarketDataProvider = (*Gated)(nil)

// GatedOption configures Gated.
type GatedOption func(*Gated)

// WithTimeout sets the per-call deadline, limiter wait excluded.
func WithTimeout(d time.Duration) GatedOption {
	return func(g *Gated) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMetrics records call outcomes and limiter waits.
func WithMetrics(m repository.Metrics) GatedOption {
	return func(g *Gated) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) GatedOption {
	return func(g *Gated) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGated wraps next. A nil limiter never blocks.
func NewGated(next service.MarketDataProvider, limiter *ratelimit.Limiter, opts ...GatedOption) *Gated {
	if limiter == nil {
		limiter = ratelimit.New(next.Name())
	}
	g := &Gated{
		next:    next,
		limiter: limiter,
		timeout: 8 * time.Second,
		metrics: repository.NopMetrics{},
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gated) Name() string { return g.next.Name() }

func (g *Gated) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return call(ctx, g, "quote", func(ctx context.Context) (*models.Quote, error) {
		return g.next.GetQuote(ctx, symbol)
	})
}

func (g *Gated) GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error) {
	return call(ctx, g, "candles", func(ctx context.Context) (*models.CandleSeries, error) {
		return g.next.GetCandles(ctx, symbol, r)
	})
}

func (g *Gated) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	return call(ctx, g, "overview", func(ctx context.Context) (*models.Overview, error) {
		return g.next.GetOverview(ctx, symbol)
	})
}

func (g *Gated) GetNews(ctx context.Context, symbol string, limit int) (*models.NewsFeed, error) {
	return call(ctx, g, "news", func(ctx context.Context) (*models.NewsFeed, error) {
		return g.next.GetNews(ctx, symbol, limit)
	})
}

func call[T any](ctx context.Context, g *Gated, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	name := g.next.Name()

	waitStart := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		g.metrics.RecordProviderCall(name, op, "throttled", 0)
		if errors.Is(err, models.ErrRateLimited) {
			return zero, models.NewProviderError(name, op, 0, err)
		}
		return zero, err
	}
	g.metrics.RecordLimiterWait(name, time.Since(waitStart).Seconds())

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	v, err := fn(callCtx)
	elapsed := time.Since(start)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, models.ErrUnsupported):
			outcome = "unsupported"
		case errors.Is(err, models.ErrNoData):
			outcome = "no_data"
		case errors.Is(err, models.ErrRateLimited):
			outcome = "throttled"
		case isTimeout(err):
			outcome = "timeout"
		}
		g.metrics.RecordProviderCall(name, op, outcome, elapsed.Seconds())
		if wait := RetryAfter(err); wait > 0 {
			g.log.Warn("provider asked to back off",
				logger.String("provider", name),
				logger.String("op", op),
				logger.Duration("retry_after", wait))
		}
		if outcome != "unsupported" {
			g.log.Debug("provider call failed",
				logger.String("provider", name),
				logger.String("op", op),
				logger.String("outcome", outcome),
				logger.Duration("elapsed", elapsed),
				logger.Error(err))
		}
		return zero, Classify(name, op, err)
	}
	g.metrics.RecordProviderCall(name, op, "ok", elapsed.Seconds())
	return v, nil
}

// RunBlocking runs a call that cannot observe ctx and abandons it once ctx
// ends. The call itself keeps running until it returns.
func RunBlocking[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
