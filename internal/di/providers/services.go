package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/anomaly"
	"github.com/listenupapp/moments-pipeline/internal/cleaner"
	"github.com/listenupapp/moments-pipeline/internal/config"
	"github.com/listenupapp/moments-pipeline/internal/issues"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/metrics"
	"github.com/listenupapp/moments-pipeline/internal/quality"
	"github.com/listenupapp/moments-pipeline/internal/validation"
)

// ProvideCleaner provides the text cleaner.
func ProvideCleaner(i do.Injector) (*cleaner.Cleaner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return cleaner.New(cfg.Cleaning, log.Component("cleaner")), nil
}

// ProvideQualityValidator provides the quality validator with a trigram
// language detector restricted to the configured candidates.
func ProvideQualityValidator(i do.Injector) (*quality.Validator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	detector := quality.NewTrigramDetector(cfg.Validation.LanguageCandidates...)
	return quality.NewValidator(cfg.Validation, detector, log.Component("quality")), nil
}

// ProvideIssueDetector provides the PII, profanity and spam detector.
func ProvideIssueDetector(i do.Injector) (*issues.Detector, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return issues.NewDetector(cfg.Issues, log.Component("issues")), nil
}

// ProvideMetricsCalculator provides the text metrics calculator.
func ProvideMetricsCalculator(i do.Injector) (*metrics.Calculator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return metrics.NewCalculator(cfg.Metrics, log.Component("metrics")), nil
}

// ProvideAnomalyDetector provides the batch anomaly detector.
func ProvideAnomalyDetector(i do.Injector) (*anomaly.Detector, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return anomaly.New(cfg.Anomaly, log.Component("anomaly")), nil
}

// ProvideStructureValidator provides the record structure validator.
func ProvideStructureValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
