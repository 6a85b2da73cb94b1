package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/config"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/lookup"
	"github.com/listenupapp/moments-pipeline/internal/source"
)

// ProvideLookup provides the book metadata resolver.
func ProvideLookup(i do.Injector) (*lookup.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	resolver := lookup.New(cfg.Lookup, cfg.Books, log.Component("lookup"))

	log.Info("Book metadata lookup initialized",
		"enabled", cfg.Lookup.Enabled,
		"base_url", cfg.Lookup.APIBaseURL,
		"catalogue_entries", len(cfg.Books),
	)

	return resolver, nil
}

// ProvideSource provides the filesystem input source.
func ProvideSource(i do.Injector) (*source.Files, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return source.NewFiles(source.Paths{
		Interpretations: cfg.Paths.Interpretations,
		Passages:        cfg.Paths.Passages,
		Characters:      cfg.Paths.Characters,
	}, cfg.PassageTitleMapping, log.Component("source")), nil
}
