package di

import (
	"context"
	"fmt"
	"time"

	"GranStocks/internal/domain/repository"
	"GranStocks/internal/domain/service"
	"GranStocks/internal/handler/api"
	internalrepo "GranStocks/internal/repository"
	"GranStocks/internal/scheduler"
	"GranStocks/internal/service/cache"
	"GranStocks/internal/service/providers"
	"GranStocks/internal/service/providers/alpaca"
	"GranStocks/internal/service/providers/alphavantage"
	"GranStocks/internal/service/providers/binance"
	"GranStocks/internal/service/providers/finnhub"
	"GranStocks/internal/service/providers/yahoo"
	"GranStocks/internal/service/ratelimit"
	"GranStocks/internal/universe"
	"GranStocks/internal/usecase"
	pkgcache "GranStocks/pkg/cache"
	pkgch "GranStocks/pkg/clickhouse"
	"GranStocks/pkg/config"
	"GranStocks/pkg/database"
	xhttp "GranStocks/pkg/http"
	pkgkafka "GranStocks/pkg/kafka"
	applogger "GranStocks/pkg/logger"
	"GranStocks/pkg/metrics"
	"GranStocks/pkg/server"
)

const initTimeout = 10 * time.Second

// ProviderSet holds the gated adapters by name.
type ProviderSet map[string]service.MarketDataProvider

// ProvideLogger creates the root logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideDatabase opens the relational store and applies its schema.
func ProvideDatabase(cfg *config.Config) (*database.Client, error) {
	db, err := database.NewClient(
		database.WithDriver(cfg.Database.Driver),
		database.WithDSN(cfg.Database.DSN),
		database.WithMaxConnections(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns),
		database.WithConnMaxLifetime(cfg.Database.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("database client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := db.InitSchema(ctx, internalrepo.Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database schema: %w", err)
	}
	return db, nil
}

// ProvideClickHouseClient connects to ClickHouse when it backs price history.
// It returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.History.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis when it is the durable cache tier.
// It returns nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if cfg.Cache.Durable != "redis" {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 5*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideMemoryCache creates the short-lived in-process tier.
func ProvideMemoryCache(cfg *config.Config) *pkgcache.MemoryCache {
	return pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		pkgcache.WithMemoryMaxTTL(cfg.Cache.MemoryTTL),
	)
}

// ProvideEntryStore picks the durable cache tier.
func ProvideEntryStore(cfg *config.Config, db *database.Client, rc *pkgcache.RedisCache) cache.EntryStore {
	if rc != nil {
		return cache.NewRedisEntryStore(rc, cfg.Cache.RedisRetention)
	}
	return internalrepo.NewSQLEntryStore(db)
}

// ProvideTieredCache stacks the memory tier over the durable store.
func ProvideTieredCache(cfg *config.Config, mem *pkgcache.MemoryCache, store cache.EntryStore, m repository.Metrics, l *applogger.Logger) *cache.Tiered {
	return cache.NewTiered(mem, store,
		cache.WithMemoryTTL(cfg.Cache.MemoryTTL),
		cache.WithMetrics(m),
		cache.WithLogger(l.With(applogger.String("component", "cache"))),
	)
}

// ProvidePriceHistory picks the price history backend.
func ProvidePriceHistory(db *database.Client, ch *pkgch.Client, l *applogger.Logger) repository.PriceHistory {
	if ch != nil {
		store := internalrepo.NewCHPriceHistory(ch)
		store.SetLogger(l.With(applogger.String("component", "price_history")))
		return store
	}
	return internalrepo.NewSQLPriceHistory(db)
}

func ProvideSymbolStates(db *database.Client) repository.SymbolStates {
	return internalrepo.NewSQLSymbolStates(db)
}

func ProvideJobStates(db *database.Client) repository.JobStates {
	return internalrepo.NewSQLJobStates(db)
}

func ProvideSnapshots(db *database.Client) repository.Snapshots {
	return internalrepo.NewSQLSnapshots(db)
}

// ProvideKafkaProducer creates a Kafka producer when events are enabled.
func ProvideKafkaProducer(cfg *config.Config, rec *metrics.Recorder) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithObserver(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes domain events to Kafka, or drops them when
// Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return repository.NopPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Events)
}

// ProvideKafkaConsumer creates the warm-request consumer when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerDeadLetter(cfg.Kafka.Topics.DeadLetter),
		pkgkafka.WithConsumerObserver(rec),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerLogger(l.With(applogger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideProviders builds every enabled adapter behind its limiter chain.
func ProvideProviders(cfg *config.Config, m repository.Metrics, l *applogger.Logger) ProviderSet {
	p := cfg.Providers
	raw := map[string]struct {
		cfg  config.Provider
		make func() service.MarketDataProvider
	}{
		finnhub.Name: {p.Finnhub, func() service.MarketDataProvider {
			return finnhub.New(finnhub.Config{APIKey: p.Finnhub.APIKey, BaseURL: p.Finnhub.BaseURL, Timeout: p.Finnhub.Timeout})
		}},
		yahoo.Name: {p.Yahoo, func() service.MarketDataProvider {
			return yahoo.New(yahoo.Config{BaseURL: p.Yahoo.BaseURL, Timeout: p.Yahoo.Timeout})
		}},
		alphavantage.Name: {p.AlphaVantage, func() service.MarketDataProvider {
			return alphavantage.New(alphavantage.Config{APIKey: p.AlphaVantage.APIKey, BaseURL: p.AlphaVantage.BaseURL, Timeout: p.AlphaVantage.Timeout})
		}},
		alpaca.Name: {p.Alpaca, func() service.MarketDataProvider {
			return alpaca.New(alpaca.Config{APIKey: p.Alpaca.APIKey, APISecret: p.Alpaca.APISecret, BaseURL: p.Alpaca.BaseURL})
		}},
		binance.Name: {p.Binance, func() service.MarketDataProvider {
			return binance.New(binance.Config{BaseURL: p.Binance.BaseURL, Timeout: p.Binance.Timeout})
		}},
	}

	set := make(ProviderSet, len(raw))
	for name, r := range raw {
		if !r.cfg.Enabled {
			continue
		}
		opts := []ratelimit.Option{ratelimit.WithMaxWait(r.cfg.MaxWait)}
		for _, lim := range r.cfg.Limits {
			opts = append(opts, ratelimit.WithBucket(lim.Capacity, lim.Window))
		}
		set[name] = providers.NewGated(r.make(), ratelimit.New(name, opts...),
			providers.WithTimeout(r.cfg.Timeout),
			providers.WithMetrics(m),
			providers.WithLogger(l.With(applogger.String("provider", name))),
		)
	}
	return set
}

// chain resolves provider names, skipping disabled ones.
func (s ProviderSet) chain(names []string) []service.MarketDataProvider {
	out := make([]service.MarketDataProvider, 0, len(names))
	for _, name := range names {
		if p, ok := s[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ProvideResolver builds the market chains and the cached resolver.
func ProvideResolver(cfg *config.Config, set ProviderSet, tiered *cache.Tiered, m repository.Metrics, l *applogger.Logger) (*usecase.Resolver, error) {
	chains := make(map[string][]service.MarketDataProvider, len(cfg.Providers.Chains))
	for market, names := range cfg.Providers.Chains {
		if c := set.chain(names); len(c) > 0 {
			chains[market] = c
		}
	}
	if _, ok := chains[usecase.DefaultMarket]; !ok {
		return nil, fmt.Errorf("no enabled provider in the %s chain", usecase.DefaultMarket)
	}

	ttl := cfg.Cache.TTL
	return usecase.NewResolver(chains, set.chain(cfg.Providers.Crypto), tiered,
		usecase.WithCacheTTLs(usecase.CacheTTLs{
			Quote:    ttl.Quote,
			Candles:  ttl.Candles,
			Overview: ttl.Overview,
			News:     ttl.News,
		}),
		usecase.WithResolverLogger(l.With(applogger.String("component", "resolver"))),
		usecase.WithResolverMetrics(m),
	), nil
}

func ProvideHistory(cfg *config.Config, resolver *usecase.Resolver, bars repository.PriceHistory, states repository.SymbolStates, events repository.EventPublisher, l *applogger.Logger) *usecase.History {
	return usecase.NewHistory(resolver, bars, states,
		usecase.WithCoverageRatio(cfg.History.CoverageRatio),
		usecase.WithBackfillYears(cfg.History.BackfillYears),
		usecase.WithHistoryEvents(events),
		usecase.WithHistoryLogger(l.With(applogger.String("component", "history"))),
	)
}

// ProvideWarmQueue creates the backfill queue and attaches it to the resolver.
func ProvideWarmQueue(cfg *config.Config, history *usecase.History, states repository.SymbolStates, resolver *usecase.Resolver, m repository.Metrics, l *applogger.Logger) *usecase.WarmQueue {
	q := usecase.NewWarmQueue(cfg.Warm.QueueSize, history, states,
		usecase.WithWarmDelay(cfg.Warm.Delay),
		usecase.WithFailedBackoff(cfg.Warm.FailedBackoff),
		usecase.WithWarmYears(cfg.History.BackfillYears),
		usecase.WithWarmLogger(l.With(applogger.String("component", "warm_queue"))),
		usecase.WithWarmMetrics(m),
	)
	resolver.SetWarmEnqueuer(q)
	return q
}

func ProvideScreenerJob(cfg *config.Config, history *usecase.History, jobs repository.JobStates, snaps repository.Snapshots, events repository.EventPublisher, m repository.Metrics, l *applogger.Logger) *usecase.ScreenerJob {
	return usecase.NewScreenerJob(history, jobs, snaps,
		usecase.WithWeights(cfg.Screener.Weights),
		usecase.WithCursorEvery(cfg.Screener.CursorEvery),
		usecase.WithStaleAfter(cfg.Screener.StaleAfter),
		usecase.WithScreenerHistoryDays(cfg.Screener.HistoryDays),
		usecase.WithScreenerEvents(events),
		usecase.WithScreenerLogger(l.With(applogger.String("component", "screener"))),
		usecase.WithScreenerMetrics(m),
	)
}

func ProvideDailyJob(cfg *config.Config, history *usecase.History, states repository.SymbolStates, snaps repository.Snapshots, m repository.Metrics, l *applogger.Logger) *usecase.DailyJob {
	return usecase.NewDailyJob(history, states, snaps,
		usecase.WithDailyHistoryDays(cfg.Scheduler.HistoryDays),
		usecase.WithDailyLimit(cfg.Jobs.DailySymbolsLimit),
		usecase.WithDailyLogger(l.With(applogger.String("component", "daily_job"))),
		usecase.WithDailyMetrics(m),
	)
}

func ProvideAnalyzer(history *usecase.History) *usecase.Analyzer {
	return usecase.NewAnalyzer(history)
}

func ProvideUniverses(cfg *config.Config) (*universe.Registry, error) {
	reg, err := universe.Load(cfg.Screener.UniversesDir)
	if err != nil {
		return nil, fmt.Errorf("universes: %w", err)
	}
	return reg, nil
}

// ProvideScheduler registers the cron jobs. It returns nil when scheduling is
// disabled.
func ProvideScheduler(cfg *config.Config, daily *usecase.DailyJob, screener *usecase.ScreenerJob, universes *universe.Registry, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s, err := scheduler.New(scheduler.Config{
		Timezone:  cfg.Scheduler.Timezone,
		DailyJob:  cfg.Scheduler.DailyJob,
		Screener:  cfg.Scheduler.Screener,
		Universes: cfg.Scheduler.Universes,
	}, daily, screener, universes, l.With(applogger.String("component", "scheduler")))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideWarmHandler consumes warm requests when Kafka is enabled.
func ProvideWarmHandler(cfg *config.Config, consumer *pkgkafka.Consumer, warm *usecase.WarmQueue, m repository.Metrics, l *applogger.Logger) pkgkafka.MessageHandler {
	if consumer == nil {
		return nil
	}
	return usecase.NewWarmRequestHandler(cfg.Kafka.Topics.WarmRequests, warm, l.With(applogger.String("component", "warm_handler")), m)
}

// ProvideHealthChecks probes every configured backing store.
func ProvideHealthChecks(db *database.Client, ch *pkgch.Client, rc *pkgcache.RedisCache) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{"database": db.Health}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = rc.Ping
	}
	return checks
}

func ProvideOpsHandler(l *applogger.Logger, screener *usecase.ScreenerJob, universes *universe.Registry, warm *usecase.WarmQueue, analyzer *usecase.Analyzer, checks map[string]api.HealthCheck) *api.OpsHandler {
	return api.NewOpsHandler(l.With(applogger.String("component", "ops")), screener, universes, warm, analyzer, checks)
}

func ProvideHTTPServer(cfg *config.Config, h *api.OpsHandler, rec *metrics.Recorder, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(l, h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithObserver(rec),
	)
}

// ProvideApp assembles the application. Closers run in reverse order, so the
// event publisher is flushed before the stores close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	warm *usecase.WarmQueue,
	screener *usecase.ScreenerJob,
	daily *usecase.DailyJob,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
	db *database.Client,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
	mem *pkgcache.MemoryCache,
	events repository.EventPublisher,
) *server.App {
	closers := []server.Closer{{Name: "database", Closer: db}}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Closer: ch})
	}
	if rc != nil {
		closers = append(closers, server.Closer{Name: "redis", Closer: rc})
	}
	closers = append(closers,
		server.Closer{Name: "memory_cache", Closer: mem},
		server.Closer{Name: "events", Closer: events},
	)

	return server.New(cfg, server.Deps{
		Logger:      l,
		HTTP:        srv,
		Warm:        warm,
		Screener:    screener,
		Daily:       daily,
		Scheduler:   sched,
		Consumer:    consumer,
		WarmHandler: handler,
		Closers:     closers,
	})
}
