package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/anomaly"
	"github.com/listenupapp/moments-pipeline/internal/cleaner"
	"github.com/listenupapp/moments-pipeline/internal/config"
	"github.com/listenupapp/moments-pipeline/internal/issues"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/lookup"
	"github.com/listenupapp/moments-pipeline/internal/metrics"
	"github.com/listenupapp/moments-pipeline/internal/pipeline"
	"github.com/listenupapp/moments-pipeline/internal/quality"
	"github.com/listenupapp/moments-pipeline/internal/source"
	"github.com/listenupapp/moments-pipeline/internal/validation"
)

// ProvidePipeline provides the batch pipeline wired to every processor.
func ProvidePipeline(i do.Injector) (*pipeline.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sinks := do.MustInvoke[*SinksHandle](i)

	progressLog := log.Component("progress")
	pcfg := pipeline.Config{
		Name:    cfg.Pipeline.Name,
		Version: cfg.Pipeline.Version,
		Workers: cfg.Pipeline.Workers,
		IDs:     cfg.IDs,
		OnProgress: func(p pipeline.Progress) {
			if p.Current == 0 {
				progressLog.Debug("Phase started", "phase", p.Phase.String(), "total", p.Total)
			}
		},
	}

	return pipeline.New(pcfg, pipeline.Deps{
		Source:    do.MustInvoke[*source.Files](i),
		Lookup:    do.MustInvoke[*lookup.Resolver](i),
		Sinks:     sinks.Sinks,
		Cleaner:   do.MustInvoke[*cleaner.Cleaner](i),
		Validator: do.MustInvoke[*quality.Validator](i),
		Issues:    do.MustInvoke[*issues.Detector](i),
		Metrics:   do.MustInvoke[*metrics.Calculator](i),
		Anomaly:   do.MustInvoke[*anomaly.Detector](i),
		Structure: do.MustInvoke[*validation.Validator](i),
	}, log.Logger)
}
