//go:build wireinject
// +build wireinject

package di

import (
	"ArbPull/pkg/config"
	"ArbPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideCache,
		ProvideCacheClasses,
		ProvideOddsProvider,
		ProvideKafkaProducer,

		// Acquisition services
		ProvideGovernor,
		ProvideNormalizer,
		ProvideRanker,

		// Compute
		ProvideEngine,
		ProvideDispatcher,

		// Use cases
		ProvideCoordinator,
		ProvidePublisher,
		ProvideScanner,

		// Delivery
		ProvideHub,
		ProvideAPIHandler,
		ProvideWSHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
