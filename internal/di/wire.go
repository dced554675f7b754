//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PulseScan/internal/domain/service"
	internalrepo "PulseScan/internal/repository"
	"PulseScan/pkg/config"
	"PulseScan/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvidePostgresClient,
		ProvideClickHouseClient,
		ProvideSettingsCache,

		// Repositories
		ProvideSettingsSource,
		wire.Bind(new(service.SettingsSource), new(*internalrepo.CacheSettingsSource)),
		ProvideTriggerStore,
		ProvideStrategyStore,
		ProvideAuditLog,
		ProvideNotifier,
		ProvideAnalysisInvoker,

		// Use cases
		ProvideCircuitBreaker,
		ProvideTriggerDetector,
		ProvidePositionTracker,
		ProvideSettingsWatcher,
		ProvideScanner,
		ProvidePipeline,
		ProvideTickSource,

		// Application server
		ProvideHTTPHandler,
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
