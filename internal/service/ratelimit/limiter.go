package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GranStocks/internal/domain/models"
)

// bucket holds capacity tokens and refills completely once its window elapses.
// There is no gradual drip: tokens spent early in a window stay spent until it resets.
type bucket struct {
	capacity int
	window   time.Duration
	tokens   int
	resetAt  time.Time
}

func (b *bucket) refill(now time.Time) {
	if !now.Before(b.resetAt) {
		b.tokens = b.capacity
		b.resetAt = now.Add(b.window)
	}
}

// Limiter gates one upstream provider through a chain of buckets. A call
// proceeds only when every bucket has a token; tokens are taken from all of
// them at once.
type Limiter struct {
	name    string
	mu      sync.Mutex
	buckets []*bucket
	poll    time.Duration
	maxWait time.Duration
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithBucket chains a bucket of capacity tokens reset every window.
func WithBucket(capacity int, window time.Duration) Option {
	return func(l *Limiter) {
		if capacity <= 0 || window <= 0 {
			return
		}
		l.buckets = append(l.buckets, &bucket{capacity: capacity, window: window, tokens: capacity})
	}
}

// WithMaxWait bounds how long Wait may block. Zero waits until ctx ends.
func WithMaxWait(d time.Duration) Option {
	return func(l *Limiter) { l.maxWait = d }
}

// WithPollInterval sets the retry interval of Wait.
func WithPollInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.poll = d
		}
	}
}

// New creates a limiter for provider name. Without buckets it never blocks.
func New(name string, opts ...Option) *Limiter {
	l := &Limiter{name: name, poll: 10 * time.Millisecond, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	start := l.now()
	for _, b := range l.buckets {
		b.resetAt = start.Add(b.window)
	}
	return l
}

// Name returns the provider the limiter gates.
func (l *Limiter) Name() string { return l.name }

// TryAcquire takes one token from every bucket if all have one. Otherwise it
// returns false and the time until the latest empty bucket resets.
func (l *Limiter) TryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var retryIn time.Duration
	for _, b := range l.buckets {
		b.refill(now)
		if b.tokens < 1 {
			if d := b.resetAt.Sub(now); d > retryIn {
				retryIn = d
			}
		}
	}
	if retryIn > 0 {
		return false, retryIn
	}
	for _, b := range l.buckets {
		b.tokens--
	}
	return true, 0
}

// Wait blocks until a token is available from every bucket, polling in order.
// It returns models.ErrRateLimited when the configured max wait cannot be met
// and ctx.Err() when the context ends first.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.now()
	for {
		ok, retryIn := l.TryAcquire()
		if ok {
			return nil
		}
		if l.maxWait > 0 && l.now().Sub(start)+retryIn > l.maxWait {
			return fmt.Errorf("%s: next token in %s: %w", l.name, retryIn.Round(time.Millisecond), models.ErrRateLimited)
		}

		sleep := l.poll
		if retryIn < sleep {
			sleep = retryIn
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
