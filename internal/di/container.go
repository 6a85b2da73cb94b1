// Package di provides dependency injection configuration for the preprocessing pipeline.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/config"
	"github.com/listenupapp/moments-pipeline/internal/di/providers"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/lookup"
	"github.com/listenupapp/moments-pipeline/internal/pipeline"
	"github.com/listenupapp/moments-pipeline/internal/source"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, providers.Args(args))
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Inputs and metadata
	do.Provide(injector, providers.ProvideSource)
	do.Provide(injector, providers.ProvideLookup)

	// Processors
	do.Provide(injector, providers.ProvideCleaner)
	do.Provide(injector, providers.ProvideQualityValidator)
	do.Provide(injector, providers.ProvideIssueDetector)
	do.Provide(injector, providers.ProvideMetricsCalculator)
	do.Provide(injector, providers.ProvideAnomalyDetector)
	do.Provide(injector, providers.ProvideStructureValidator)

	// Outputs
	do.Provide(injector, providers.ProvideSinks)

	do.Provide(injector, providers.ProvidePipeline)

	return injector
}

// Bootstrap initializes every service so configuration and sink errors
// surface before a run starts.
func Bootstrap(injector *do.RootScope) (*pipeline.Pipeline, error) {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return nil, err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*source.Files](injector)
	_ = do.MustInvoke[*lookup.Resolver](injector)
	if _, err := do.Invoke[*providers.SinksHandle](injector); err != nil {
		return nil, err
	}
	return do.Invoke[*pipeline.Pipeline](injector)
}
