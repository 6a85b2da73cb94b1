// Package providers contains dependency injection providers for the preprocessing pipeline.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/config"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Args are the command-line arguments the configuration is loaded from.
type Args []string

// ProvideConfig provides the pipeline configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args := do.MustInvoke[Args](i)
	return config.Load(args)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting preprocessing pipeline",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"config_file", cfg.ConfigFile,
		"sinks", cfg.Output.Sinks,
	)

	return log, nil
}
