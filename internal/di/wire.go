//go:build wireinject
// +build wireinject

package di

import (
	"MacroGate/pkg/config"
	"MacroGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideEngine,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKV,
		ProvideTTLCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSeriesSource,
		ProvideCalendarStore,
		ProvidePresetStore,
		ProvideMemoryAudit,
		ProvideAuditLog,

		// Use cases
		ProvideEvaluator,
		ProvideSnapshotRecorder,
		ProvideEvaluationHub,
		ProvideScheduler,
		ProvideCalendarUseCase,
		ProvideCalendarFeedHandler,

		// Transport
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideInfra,
		ProvideApp,
	)
	return &server.App{}, nil
}
