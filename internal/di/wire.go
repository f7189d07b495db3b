//go:build wireinject
// +build wireinject

package di

import (
	"PawnPrice/pkg/config"
	"PawnPrice/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideEventPublisher,
		ProvideKafkaConsumer,
		ProvideClickHouseClient,
		ProvidePostgresClient,

		// Repositories
		ProvideWarehouse,
		ProvideOfferStore,

		// Marketplace and vision
		ProvideResearcher,
		ProvideIdentifier,

		// Use cases
		ProvideFraudAnalyzer,
		ProvidePricingService,
		ProvidePriceOptimizer,
		ProvideOptimizerJob,
		ProvideQueue,
		ProvideOfferSubmittedHandler,

		// Application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
