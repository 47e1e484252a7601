//go:build wireinject
// +build wireinject

package di

import (
	"FinFuse/pkg/config"
	"FinFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideStores,
		ProvideAnnotator,
		ProvideKafkaConsumer,

		// Core services
		ProvideFusionStore,
		ProvideRetrieval,

		// Use cases
		ProvidePriceIngestor,
		ProvideNewsIngestor,
		ProvideSessions,
		ProvideRegistry,
		ProvideSelector,
		ProvideAgentLoop,
		ProvideKafkaBarsHandler,
		ProvideKafkaNewsHandler,
		ProvideBarPublisher,
		ProvideFeedCollector,

		// HTTP surface and application server
		ProvideHandlers,
		ProvideApp,
	)
	return &server.App{}, nil
}
