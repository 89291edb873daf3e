package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/service/ratelimit"
	apphttp "GranStocks/pkg/http"
)

type stubProvider struct {
	quoteErr error
	delay    time.Duration
	calls    int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return &models.Quote{Symbol: symbol, Price: 1, Source: "stub"}, nil
}

func (s *stubProvider) GetCandles(context.Context, string, models.Range) (*models.CandleSeries, error) {
	return nil, Unsupported("stub", "candles")
}

func (s *stubProvider) GetOverview(context.Context, string) (*models.Overview, error) {
	return nil, Unsupported("stub", "overview")
}

func (s *stubProvider) GetNews(context.Context, string, int) (*models.NewsFeed, error) {
	return nil, Unsupported("stub", "news")
}

type callRecorder struct {
	repository.NopMetrics
	mu       sync.Mutex
	outcomes []string
}

func (r *callRecorder) RecordProviderCall(_, _, outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestGatedSuccess(t *testing.T) {
	rec := &callRecorder{}
	g := NewGated(&stubProvider{}, nil, WithMetrics(rec))

	q, err := g.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "stub", q.Source)
	assert.Equal(t, []string{"ok"}, rec.outcomes)
}

func TestGatedDeadline(t *testing.T) {
	rec := &callRecorder{}
	g := NewGated(&stubProvider{delay: time.Second}, nil, WithTimeout(20*time.Millisecond), WithMetrics(rec))

	_, err := g.GetQuote(context.Background(), "AAPL")
	var pe *models.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"timeout"}, rec.outcomes)
}

func TestGatedLimiterExhaustionIsProviderError(t *testing.T) {
	p := &stubProvider{}
	lim := ratelimit.New("stub", ratelimit.WithBucket(1, time.Hour), ratelimit.WithMaxWait(10*time.Millisecond))
	g := NewGated(p, lim)

	_, err := g.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	_, err = g.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrRateLimited)
	var pe *models.ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, p.calls, "throttled call never reaches the provider")
}

func TestGatedUnsupportedPassesThrough(t *testing.T) {
	rec := &callRecorder{}
	g := NewGated(&stubProvider{}, nil, WithMetrics(rec))
	_, err := g.GetNews(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, models.ErrUnsupported)
	assert.Equal(t, []string{"unsupported"}, rec.outcomes)
}

func TestClassify(t *testing.T) {
	err := Classify("p", "quote", &apphttp.StatusError{StatusCode: 429, RetryAfter: 3 * time.Second})
	assert.ErrorIs(t, err, models.ErrRateLimited)
	assert.Equal(t, 3*time.Second, RetryAfter(err))
	assert.Zero(t, RetryAfter(errors.New("plain")))

	err = Classify("p", "quote", &apphttp.StatusError{StatusCode: 404})
	assert.ErrorIs(t, err, models.ErrNoData)

	err = Classify("p", "quote", &apphttp.StatusError{StatusCode: 502, Body: "bad gateway"})
	var pe *models.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 502, pe.Status)

	boom := errors.New("boom")
	err = Classify("p", "quote", boom)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, Classify("p", "quote", nil))
}
