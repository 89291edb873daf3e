package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/domain/service"
	"GranStocks/internal/service/ratelimit"
	"GranStocks/pkg/logger"
)

// Backfiller loads multi-year history for a symbol.
type Backfiller interface {
	BackfillSymbol(ctx context.Context, symbol string, assetType models.AssetType, years int) (int, error)
}

// WarmQueue is a bounded FIFO of backfill requests drained by one worker.
type WarmQueue struct {
	ch            chan models.WarmRequest
	backfill      Backfiller
	states        repository.SymbolStates
	pacer         *ratelimit.Limiter
	failedBackoff time.Duration
	years         int
	log           *logger.Logger
	metrics       repository.Metrics
	now           func() time.Time

	mu      sync.Mutex
	queued  map[string]struct{}
	closed  bool
	started bool

	stop chan struct{}
	done chan struct{}
}

var _ service.WarmEnqueuer = (*WarmQueue)(nil)

type WarmOption func(*WarmQueue)

// WithWarmDelay spaces consecutive backfills by at least d.
func WithWarmDelay(d time.Duration) WarmOption {
	return func(q *WarmQueue) {
		if d > 0 {
			q.pacer = ratelimit.New("warm", ratelimit.WithBucket(1, d), ratelimit.WithPollInterval(d/10+time.Millisecond))
		}
	}
}

// WithFailedBackoff skips symbols whose last backfill failed less than d ago.
func WithFailedBackoff(d time.Duration) WarmOption {
	return func(q *WarmQueue) { q.failedBackoff = d }
}

func WithWarmYears(y int) WarmOption {
	return func(q *WarmQueue) { q.years = y }
}

func WithWarmLogger(l *logger.Logger) WarmOption {
	return func(q *WarmQueue) {
		if l != nil {
			q.log = l
		}
	}
}

func WithWarmMetrics(m repository.Metrics) WarmOption {
	return func(q *WarmQueue) {
		if m != nil {
			q.metrics = m
		}
	}
}

func NewWarmQueue(size int, backfill Backfiller, states repository.SymbolStates, opts ...WarmOption) *WarmQueue {
	if size <= 0 {
		size = 512
	}
	q := &WarmQueue{
		ch:            make(chan models.WarmRequest, size),
		backfill:      backfill,
		states:        states,
		pacer:         ratelimit.New("warm", ratelimit.WithBucket(1, 2*time.Second), ratelimit.WithPollInterval(100*time.Millisecond)),
		failedBackoff: time.Hour,
		log:           logger.NewNop(),
		metrics:       repository.NopMetrics{},
		now:           time.Now,
		queued:        make(map[string]struct{}),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue never blocks. It reports whether req was accepted; duplicates of
// queued requests and requests arriving on a full or stopped queue are not.
func (q *WarmQueue) Enqueue(req models.WarmRequest) bool {
	req.Symbol = models.NormalizeSymbol(req.Symbol)
	if req.AssetType == "" {
		req.AssetType = models.AssetStock
	}
	key := req.Key()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if _, dup := q.queued[key]; dup {
		q.metrics.RecordWarmResult("duplicate")
		return false
	}
	select {
	case q.ch <- req:
		q.queued[key] = struct{}{}
		q.metrics.SetWarmQueueDepth(len(q.ch))
		return true
	default:
		q.metrics.RecordWarmResult("dropped")
		q.log.Warn("warm queue full, request dropped",
			logger.String("symbol", req.Symbol),
			logger.Int("capacity", cap(q.ch)))
		return false
	}
}

// Len returns the number of queued requests.
func (q *WarmQueue) Len() int { return len(q.ch) }

// Start launches the worker. Later calls are no-ops.
func (q *WarmQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.run()
}

// Stop rejects new requests, lets the worker finish its current item and
// waits for it to exit or for ctx to end.
func (q *WarmQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.stop)
	q.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WarmQueue) run() {
	defer close(q.done)

	// pacing waits end on stop; an item already running does not.
	waitCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-q.stop
		cancel()
	}()

	for {
		select {
		case <-q.stop:
			return
		case req := <-q.ch:
			q.mu.Lock()
			delete(q.queued, req.Key())
			q.mu.Unlock()
			q.metrics.SetWarmQueueDepth(len(q.ch))

			if !q.needsBackfill(waitCtx, req) {
				q.metrics.RecordWarmResult("skipped")
				continue
			}
			if err := q.pacer.Wait(waitCtx); err != nil {
				return
			}
			q.process(req)
		}
	}
}

func (q *WarmQueue) needsBackfill(ctx context.Context, req models.WarmRequest) bool {
	st, err := q.states.Get(ctx, req.AssetType, req.Symbol)
	if errors.Is(err, models.ErrNotFound) {
		return true
	}
	if err != nil {
		q.log.Warn("warm state read failed", logger.String("symbol", req.Symbol), logger.Error(err))
		return true
	}
	switch st.Status {
	case models.CacheReady:
		return false
	case models.CacheFailed:
		return q.now().Sub(st.LastAttemptAt) >= q.failedBackoff
	default:
		return true
	}
}

func (q *WarmQueue) process(req models.WarmRequest) {
	start := time.Now()
	n, err := q.backfill.BackfillSymbol(context.Background(), req.Symbol, req.AssetType, q.years)
	if err != nil {
		q.metrics.RecordWarmResult("failed")
		q.log.Warn("warm backfill failed",
			logger.String("symbol", req.Symbol),
			logger.String("asset_type", string(req.AssetType)),
			logger.Error(err))
		return
	}
	q.metrics.RecordWarmResult("ok")
	q.log.Info("warm backfill done",
		logger.String("symbol", req.Symbol),
		logger.Int("bars", n),
		logger.Duration("elapsed", time.Since(start)))
}
