//go:build wireinject
// +build wireinject

package di

import (
	"LevelWatch/pkg/config"
	"LevelWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Repositories
		ProvideBarStore,
		ProvideRunStore,
		ProvideBarPublisher,
		ProvideEventPublisher,
		ProvideMarketStream,
		ProvideHistory,
		ProvideQueuePublisher,
		ProvideCoverageLocks,

		// Strategy engine
		ProvideEngine,
		ProvideAlertHistory,

		// Use cases
		ProvideBarProcessor,
		ProvideBarCollector,
		ProvideKafkaBarsHandler,
		ProvideBacktestRunner,
		ProvideSnapshotUseCase,
		ProvideCandlesUseCase,

		// HTTP handlers
		ProvideLiveHandler,
		ProvideRunsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
