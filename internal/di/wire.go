//go:build wireinject
// +build wireinject

package di

import (
	"PlanSentry/pkg/config"
	"PlanSentry/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCacheStore,

		// Domain services
		ProvideProfileStore,
		ProvideSessionClassifier,
		ProvideCalibrator,
		ProvideBarCache,
		ProvideAnalyzer,

		// Repositories
		ProvideBarSource,
		ProvideSnapshotStore,
		ProvideEmitter,
		ProvideOutcomeStore,
		ProvideAdvisor,

		// Use cases
		ProvidePlanRegistry,
		ProvidePlanService,
		ProvideRefreshScheduler,
		ProvideAnalysisService,
		ProvideThresholdResolver,
		ProvideConditionEngine,
		ProvideSnapshotPersister,
		ProvideOutcomeRecorder,
		ProvideBarCollector,
		ProvidePlanCommandHandler,

		// Transport
		ProvidePlanHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
