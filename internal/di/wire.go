//go:build wireinject
// +build wireinject

package di

import (
	"GranStocks/internal/domain/repository"
	"GranStocks/pkg/config"
	"GranStocks/pkg/metrics"
	"GranStocks/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,
		wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),

		// Infrastructure clients
		ProvideDatabase,
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideMemoryCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideEntryStore,
		ProvideTieredCache,
		ProvidePriceHistory,
		ProvideSymbolStates,
		ProvideJobStates,
		ProvideSnapshots,
		ProvideEventPublisher,

		// Market data
		ProvideProviders,
		ProvideResolver,

		// Use cases
		ProvideHistory,
		ProvideWarmQueue,
		ProvideScreenerJob,
		ProvideDailyJob,
		ProvideAnalyzer,
		ProvideUniverses,
		ProvideScheduler,
		ProvideWarmHandler,

		// Transport
		ProvideHealthChecks,
		ProvideOpsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
