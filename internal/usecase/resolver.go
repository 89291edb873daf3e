package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/domain/service"
	"GranStocks/internal/service/cache"
	"GranStocks/internal/service/coalesce"
	pkgcache "GranStocks/pkg/cache"
	"GranStocks/pkg/logger"
	"GranStocks/pkg/validate"
)

// DefaultMarket is the chain used for symbols without a configured suffix.
const DefaultMarket = "US"

// CacheTTLs is the freshness window per operation.
type CacheTTLs struct {
	Quote    time.Duration
	Candles  time.Duration
	Overview time.Duration
	News     time.Duration
}

// Resolver serves market data from cache or from the first provider in the
// symbol's chain that answers.
type Resolver struct {
	chains  map[string][]service.MarketDataProvider
	crypto  []service.MarketDataProvider
	cache   *cache.Tiered
	group   *coalesce.Group
	warm    service.WarmEnqueuer
	ttl     CacheTTLs
	log     *logger.Logger
	metrics repository.Metrics
}

var (
	_ service.CandleSource      = (*Resolver)(nil)
	_ service.CandleInvalidator = (*Resolver)(nil)
)

type ResolverOption func(*Resolver)

func WithCacheTTLs(t CacheTTLs) ResolverOption {
	return func(r *Resolver) { r.ttl = t }
}

// WithWarmEnqueuer lets candle reads schedule a history backfill.
func WithWarmEnqueuer(w service.WarmEnqueuer) ResolverOption {
	return func(r *Resolver) { r.warm = w }
}

func WithResolverLogger(l *logger.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func WithResolverMetrics(m repository.Metrics) ResolverOption {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewResolver builds a resolver. chains maps a market suffix ("US", "SA",
// "L") to its ordered providers; crypto is the chain for crypto symbols.
func NewResolver(chains map[string][]service.MarketDataProvider, crypto []service.MarketDataProvider, tiered *cache.Tiered, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		chains: chains,
		crypto: crypto,
		cache:  tiered,
		group:  coalesce.New(),
		ttl: CacheTTLs{
			Quote:    time.Minute,
			Candles:  6 * time.Hour,
			Overview: 7 * 24 * time.Hour,
			News:     30 * time.Minute,
		},
		log:     logger.NewNop(),
		metrics: repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetWarmEnqueuer attaches the warm queue after construction. The queue
// depends on history, which reads through this resolver. Call it before the
// resolver serves requests.
func (r *Resolver) SetWarmEnqueuer(w service.WarmEnqueuer) {
	r.warm = w
}

// Market returns the routing key of an equity symbol.
func Market(symbol string) string {
	if i := strings.LastIndexByte(symbol, '.'); i >= 0 && i < len(symbol)-1 {
		return strings.ToUpper(symbol[i+1:])
	}
	return DefaultMarket
}

func (r *Resolver) chainFor(symbol string, assetType models.AssetType) []service.MarketDataProvider {
	if assetType == models.AssetCrypto {
		return r.crypto
	}
	if chain, ok := r.chains[Market(symbol)]; ok {
		return chain
	}
	return r.chains[DefaultMarket]
}

func (r *Resolver) GetQuote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error) {
	if err := checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	key := cacheKey("quote", req.AssetType, symbol)
	return resolve(ctx, r, lookup[*models.Quote]{
		op:    "quote",
		key:   key,
		chain: r.chainFor(symbol, req.AssetType),
		ttl:   r.ttl.Quote,
		fetch: func(ctx context.Context, p service.MarketDataProvider) (*models.Quote, error) {
			return p.GetQuote(ctx, symbol)
		},
		stamp: func(q *models.Quote, source string, stale, _ bool) *models.Quote {
			c := *q
			c.Source, c.IsStale = source, stale
			return &c
		},
	}, true)
}

// GetCandles reads through the cache and schedules a history warm-up for
// every valid request, including ones the chain could not answer.
func (r *Resolver) GetCandles(ctx context.Context, req models.CandlesRequest) (*models.CandleSeries, error) {
	if err := checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	if r.warm != nil {
		r.warm.Enqueue(models.WarmRequest{Symbol: models.NormalizeSymbol(req.Symbol), AssetType: req.AssetType})
	}
	return r.candles(ctx, req, true)
}

// InvalidateCandles marks the cached windows of symbol stale so the next read
// refetches. keep is left alone.
func (r *Resolver) InvalidateCandles(ctx context.Context, symbol string, assetType models.AssetType, keep models.Range) error {
	symbol = models.NormalizeSymbol(symbol)
	if assetType == "" {
		assetType = models.AssetStock
	}
	var errs []error
	for _, rg := range models.Ranges() {
		if rg == keep {
			continue
		}
		if err := r.cache.MarkStale(ctx, cacheKey("candles", assetType, symbol, string(rg))); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetCandlesLive skips the cache read but refreshes it on success. It never
// serves stale data.
func (r *Resolver) GetCandlesLive(ctx context.Context, req models.CandlesRequest) (*models.CandleSeries, error) {
	if err := checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	return r.candles(ctx, req, false)
}

func (r *Resolver) candles(ctx context.Context, req models.CandlesRequest, useCache bool) (*models.CandleSeries, error) {
	symbol := models.NormalizeSymbol(req.Symbol)
	key := cacheKey("candles", req.AssetType, symbol, string(req.Range))
	return resolve(ctx, r, lookup[*models.CandleSeries]{
		op:    "candles",
		key:   key,
		chain: r.chainFor(symbol, req.AssetType),
		ttl:   r.ttl.Candles,
		fetch: func(ctx context.Context, p service.MarketDataProvider) (*models.CandleSeries, error) {
			s, err := p.GetCandles(ctx, symbol, req.Range)
			if err != nil {
				return nil, err
			}
			if s.Len() == 0 {
				return nil, models.NewProviderError(p.Name(), "candles", 0, models.ErrNoData)
			}
			return s, nil
		},
		stamp: func(s *models.CandleSeries, source string, stale, fromCache bool) *models.CandleSeries {
			c := *s
			c.Symbol, c.Source, c.IsStale, c.FromCache = symbol, source, stale, fromCache
			return &c
		},
	}, useCache)
}

func (r *Resolver) GetOverview(ctx context.Context, req models.QuoteRequest) (*models.Overview, error) {
	if err := checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	return resolve(ctx, r, lookup[*models.Overview]{
		op:    "overview",
		key:   cacheKey("overview", req.AssetType, symbol),
		chain: r.chainFor(symbol, req.AssetType),
		ttl:   r.ttl.Overview,
		fetch: func(ctx context.Context, p service.MarketDataProvider) (*models.Overview, error) {
			return p.GetOverview(ctx, symbol)
		},
		stamp: func(o *models.Overview, source string, stale, _ bool) *models.Overview {
			c := *o
			c.Source, c.IsStale = source, stale
			return &c
		},
	}, true)
}

func (r *Resolver) GetNews(ctx context.Context, req models.QuoteRequest, limit int) (*models.NewsFeed, error) {
	if err := checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	return resolve(ctx, r, lookup[*models.NewsFeed]{
		op:    "news",
		key:   cacheKey("news", req.AssetType, symbol, fmt.Sprint(limit)),
		chain: r.chainFor(symbol, req.AssetType),
		ttl:   r.ttl.News,
		fetch: func(ctx context.Context, p service.MarketDataProvider) (*models.NewsFeed, error) {
			return p.GetNews(ctx, symbol, limit)
		},
		stamp: func(f *models.NewsFeed, source string, stale, _ bool) *models.NewsFeed {
			c := *f
			c.Source, c.IsStale = source, stale
			return &c
		},
	}, true)
}

type lookup[T any] struct {
	op    string
	key   string
	chain []service.MarketDataProvider
	ttl   time.Duration
	fetch func(context.Context, service.MarketDataProvider) (T, error)
	// stamp returns a copy of v carrying provenance; shared results are never mutated.
	stamp func(v T, source string, stale, fromCache bool) T
}

type sourced[T any] struct {
	v      T
	source string
}

func resolve[T any](ctx context.Context, r *Resolver, l lookup[T], useCache bool) (T, error) {
	var zero T
	if useCache {
		if v, e, ok := cached[T](ctx, r, l.key); ok && !e.IsStale {
			return l.stamp(v, e.Source, false, true), nil
		}
	}

	// The shared fetch must outlive a single caller giving up.
	res, _, err := coalesce.Do(ctx, r.group, l.op+"|"+l.key, func() (sourced[T], error) {
		return runChain(context.WithoutCancel(ctx), r, l)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if err == nil {
		return l.stamp(res.v, res.source, false, false), nil
	}

	if !useCache {
		r.metrics.RecordError("resolver_" + l.op)
		return zero, err
	}
	if v, e, ok := cached[T](ctx, r, l.key); ok {
		r.log.Warn("serving cached value after provider failure",
			logger.String("op", l.op),
			logger.String("key", l.key),
			logger.Bool("stale", e.IsStale),
			logger.Error(err))
		return l.stamp(v, e.Source, e.IsStale, true), nil
	}
	r.metrics.RecordError("resolver_" + l.op)

	var chainErr *models.ChainError
	if errors.As(err, &chainErr) && chainErr.AllNoData() {
		return zero, fmt.Errorf("%s %s: %w", l.op, l.key, models.ErrNoData)
	}
	return zero, err
}

// runChain tries providers in order; the first success is cached and returned.
func runChain[T any](ctx context.Context, r *Resolver, l lookup[T]) (sourced[T], error) {
	chainErr := &models.ChainError{Op: l.op, Key: l.key}
	unsupported := 0
	for _, p := range l.chain {
		v, err := l.fetch(ctx, p)
		if err == nil {
			if _, cerr := r.cache.Set(ctx, l.key, p.Name(), v, l.ttl); cerr != nil {
				r.log.Error("cache write failed", logger.String("key", l.key), logger.Error(cerr))
			}
			return sourced[T]{v: v, source: p.Name()}, nil
		}
		if errors.Is(err, models.ErrUnsupported) {
			unsupported++
			continue
		}
		chainErr.Errors = append(chainErr.Errors, err)
	}
	if len(chainErr.Errors) == 0 {
		if unsupported > 0 {
			return sourced[T]{}, fmt.Errorf("%s %s: %w", l.op, l.key, models.ErrUnsupported)
		}
		return sourced[T]{}, fmt.Errorf("%s %s: no providers configured: %w", l.op, l.key, models.ErrAllProvidersFailed)
	}
	return sourced[T]{}, chainErr
}

func cached[T any](ctx context.Context, r *Resolver, key string) (T, *cache.Entry, bool) {
	var zero T
	e, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			r.log.Error("cache read failed", logger.String("key", key), logger.Error(err))
		}
		return zero, nil, false
	}
	v, err := cache.Decode[T](e)
	if err != nil {
		r.log.Error("cache decode failed", logger.String("key", key), logger.Error(err))
		return zero, nil, false
	}
	return v, e, true
}

func cacheKey(op string, assetType models.AssetType, parts ...string) string {
	return pkgcache.GenerateKey(op, append([]string{string(assetType)}, parts...)...)
}

// checkRequest applies defaults and validation tags, converting failures to
// *models.ValidationError.
func checkRequest(ctx context.Context, req any) error {
	err := validate.Struct(ctx, req)
	if err == nil {
		return nil
	}
	var verrs validate.Errors
	if !errors.As(err, &verrs) {
		return &models.ValidationError{Fields: []models.FieldViolation{{Message: err.Error()}}}
	}
	fields := make([]models.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldViolation{Field: fe.Field, Message: fe.Message})
	}
	return &models.ValidationError{Fields: fields}
}
