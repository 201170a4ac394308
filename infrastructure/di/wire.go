//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"docprobe/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideCollector,
	ProvideTracer,
	ProvideDriverStore,
	ProvideDocumentStore,
	ProvideClientConfig,
	ProvideDocumentStoreClient,
	ProvideProber,
	ProvideSweeper,
	ProvideAWSConfig,
	ProvideCloudWatchClient,
	ProvideEventBridgeClient,
	ProvidePublishers,
	ProvideJWTValidator,
	ProvideRateLimiter,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
