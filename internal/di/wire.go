//go:build wireinject
// +build wireinject

package di

import (
	"SigRelay/pkg/config"
	"SigRelay/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRecordStore,
		ProvideJournal,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideClickHouseClient,
		ProvideAlerts,

		// Executors
		ProvideExecutorBindings,
		ProvideAccountStreams,

		// Use cases
		ProvideLedger,
		ProvideRiskMonitor,
		ProvideQueueProcessor,
		ProvideDistributor,
		ProvideIntegrityMonitor,

		// HTTP surface and application server
		ProvideOpsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
