// Package anomaly flags records that stand out from their batch.
//
// A Detector starts unfitted. Fit computes the batch baselines (word-count
// quartiles, readability mean and deviation, a TF-IDF index) and publishes
// them in one step; Detect compares a single record against them. Detect on
// an unfitted detector returns a neutral report.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/metrics"
	"github.com/listenupapp/moments-pipeline/internal/similarity"
)

// minStd keeps z-scores finite when every readability score is identical.
const minStd = 1e-6

// Record is the view of one processed interpretation the detector needs.
// Profile is optional; without it the style check is skipped.
type Record struct {
	ID      string
	Text    string
	Metrics domain.Metrics
	Profile *domain.ReaderProfile
}

// WordCountConfig configures the IQR rule.
type WordCountConfig struct {
	IQRMultiplier float64 `yaml:"iqr_multiplier"`
}

// ReadabilityConfig configures the z-score rule.
type ReadabilityConfig struct {
	ZScoreThreshold float64 `yaml:"zscore_threshold"`
}

// DuplicateConfig configures near-duplicate detection.
type DuplicateConfig struct {
	Enabled             bool              `yaml:"enabled"`
	SimilarityThreshold float64           `yaml:"similarity_threshold"`
	Vectorizer          similarity.Config `yaml:"tfidf"`
}

// StyleConfig configures the experience/readability consistency rule.
type StyleConfig struct {
	Enabled bool `yaml:"enabled"`
	// NewReaderCeiling is the readability above which well-read readers
	// are flagged.
	NewReaderCeiling float64 `yaml:"new_reader_readability_ceiling"`
	// WellReadFloor is the readability below which new readers are flagged.
	WellReadFloor float64 `yaml:"well_read_readability_floor"`
}

// Config groups the detector settings.
type Config struct {
	Enabled       bool              `yaml:"enabled"`
	WordCount     WordCountConfig   `yaml:"word_count"`
	Readability   ReadabilityConfig `yaml:"readability"`
	Duplicate     DuplicateConfig   `yaml:"duplicate"`
	StyleMismatch StyleConfig       `yaml:"style_mismatch"`
}

// DefaultConfig returns the standard rule thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		WordCount:   WordCountConfig{IQRMultiplier: 1.5},
		Readability: ReadabilityConfig{ZScoreThreshold: 2.5},
		Duplicate: DuplicateConfig{
			Enabled:             true,
			SimilarityThreshold: 0.85,
			Vectorizer:          similarity.DefaultConfig(),
		},
		StyleMismatch: StyleConfig{
			Enabled:          true,
			NewReaderCeiling: 70,
			WellReadFloor:    30,
		},
	}
}

// baseline is built completely before it is published and never mutated.
type baseline struct {
	wordCount   *domain.WordCountBaseline
	readability *domain.ReadabilityBaseline
	index       *similarity.Index
}

// Detector is safe for concurrent Detect calls, including while a Fit is
// in progress; readers see either the previous baseline or the new one.
type Detector struct {
	cfg        Config
	vectorizer *similarity.Vectorizer
	logger     *slog.Logger
	fitted     atomic.Pointer[baseline]
}

// New creates an unfitted detector. When the vectorizer cannot be built,
// duplicate detection is disabled and the failure logged.
func New(cfg Config, log *slog.Logger) *Detector {
	d := &Detector{cfg: cfg, logger: logger.OrDiscard(log)}
	if cfg.Enabled && cfg.Duplicate.Enabled {
		v, err := similarity.NewVectorizer(cfg.Duplicate.Vectorizer, d.logger)
		if err != nil {
			d.logger.Error("similarity vectorizer unavailable, duplicate detection disabled", "error", err)
		} else {
			d.vectorizer = v
		}
	}
	return d
}

// Fitted reports whether Fit has completed.
func (d *Detector) Fitted() bool {
	return d.fitted.Load() != nil
}

// Fit computes the batch baselines from records. Only positive word counts
// and readability scores contribute. A failed index build disables
// duplicate detection for this baseline.
func (d *Detector) Fit(records []Record) {
	if !d.cfg.Enabled {
		d.logger.Info("anomaly detection disabled, skipping fit")
		return
	}
	d.logger.Info("fitting anomaly detector", "records", len(records))

	b := &baseline{}

	var counts []int
	var scores []float64
	for _, r := range records {
		if r.Metrics.WordCount > 0 {
			counts = append(counts, r.Metrics.WordCount)
		}
		if r.Metrics.ReadabilityScore > 0 {
			scores = append(scores, r.Metrics.ReadabilityScore)
		}
	}

	if len(counts) > 0 {
		slices.Sort(counts)
		n := len(counts)
		q1, q3 := counts[n/4], counts[(3*n)/4]
		iqr := q3 - q1
		k := d.cfg.WordCount.IQRMultiplier
		b.wordCount = &domain.WordCountBaseline{
			Q1:         q1,
			Q3:         q3,
			IQR:        iqr,
			LowerBound: float64(q1) - k*float64(iqr),
			UpperBound: float64(q3) + k*float64(iqr),
		}
		d.logger.Info("word count baseline",
			"q1", q1, "q3", q3, "iqr", iqr,
			"lower", b.wordCount.LowerBound, "upper", b.wordCount.UpperBound)
	}

	if len(scores) > 0 {
		mean, std := metrics.MeanStd(scores)
		b.readability = &domain.ReadabilityBaseline{Mean: mean, Std: math.Max(std, minStd)}
		d.logger.Info("readability baseline", "mean", mean, "std", std)
	}

	if d.cfg.Duplicate.Enabled && d.vectorizer != nil && len(records) > 0 {
		texts := make([]string, len(records))
		ids := make([]string, len(records))
		for i, r := range records {
			texts[i], ids[i] = r.Text, r.ID
		}
		ix, err := d.vectorizer.Fit(texts, ids)
		if err != nil {
			d.logger.Error("tf-idf fit failed, duplicate detection skipped", "error", err)
		} else {
			b.index = ix
			d.logger.Info("tf-idf index built", "docs", ix.Docs(), "features", ix.Terms())
		}
	}

	d.fitted.Store(b)
	d.logger.Info("anomaly detector fitted")
}

// Detect evaluates one record against the fitted baselines.
func (d *Detector) Detect(r Record) domain.AnomalyReport {
	if !d.cfg.Enabled {
		return domain.NeutralAnomalyReport()
	}
	b := d.fitted.Load()
	if b == nil {
		d.logger.Warn("detect called before fit, returning neutral report", "record", r.ID)
		return domain.NeutralAnomalyReport()
	}

	report := domain.NeutralAnomalyReport()

	if wc := b.wordCount; wc != nil {
		n := r.Metrics.WordCount
		switch {
		case float64(n) < wc.LowerBound:
			report.WordCountOutlier = true
			report.Details = append(report.Details,
				fmt.Sprintf("word_count_low: %d words (below lower bound of %.1f)", n, wc.LowerBound))
		case float64(n) > wc.UpperBound:
			report.WordCountOutlier = true
			report.Details = append(report.Details,
				fmt.Sprintf("word_count_high: %d words (above upper bound of %.1f)", n, wc.UpperBound))
		}
	}

	if rb := b.readability; rb != nil {
		score := r.Metrics.ReadabilityScore
		z := math.Abs(score-rb.Mean) / rb.Std
		if z > d.cfg.Readability.ZScoreThreshold {
			direction := "low"
			if score > rb.Mean {
				direction = "high"
			}
			report.ReadabilityOutlier = true
			report.Details = append(report.Details,
				fmt.Sprintf("readability_%s: score=%.2f, z-score=%.2f (threshold=%g)",
					direction, score, z, d.cfg.Readability.ZScoreThreshold))
		}
	}

	if b.index != nil && d.cfg.Duplicate.Enabled {
		if m, ok := b.index.FirstAbove(r.Text, r.ID, d.cfg.Duplicate.SimilarityThreshold); ok {
			id := m.ID
			report.DuplicateRisk = true
			report.DuplicateOf = &id
			report.Details = append(report.Details,
				fmt.Sprintf("duplicate_risk: %.2f similarity with %s", m.Score, m.ID))
		}
	}

	if d.cfg.StyleMismatch.Enabled && r.Profile != nil {
		if detail, ok := d.styleMismatch(r.Metrics.ReadabilityScore, r.Profile); ok {
			report.StyleMismatch = true
			report.Details = append(report.Details, detail)
		}
	}

	if report.Any() {
		d.logger.Debug("anomalies detected", "record", r.ID, "details", report.Details)
	}
	return report
}

// styleMismatch flags new readers writing very complex text and well-read
// readers writing very simple text.
func (d *Detector) styleMismatch(readability float64, p *domain.ReaderProfile) (string, bool) {
	level := strings.TrimSpace(p.ExperienceLevel)
	category := strings.TrimSpace(p.DistributionCategory)
	cfg := d.cfg.StyleMismatch

	if level == domain.ExperienceNew || category == domain.CategoryNewReader {
		if readability < cfg.WellReadFloor {
			return fmt.Sprintf("style_mismatch: NEW READER with complex writing (readability=%.1f, threshold=%g)",
				readability, cfg.WellReadFloor), true
		}
	}
	if level == domain.ExperienceWellRead && readability > cfg.NewReaderCeiling {
		return fmt.Sprintf("style_mismatch: Well-read reader with simple writing (readability=%.1f, threshold=%g)",
			readability, cfg.NewReaderCeiling), true
	}
	return "", false
}

// DetectBatch fits on records when the detector is unfitted, then detects
// each record in order and logs per-rule counts.
func (d *Detector) DetectBatch(records []Record) []domain.AnomalyReport {
	reports := make([]domain.AnomalyReport, len(records))
	if !d.cfg.Enabled {
		d.logger.Info("anomaly detection disabled")
		for i := range reports {
			reports[i] = domain.NeutralAnomalyReport()
		}
		return reports
	}
	if !d.Fitted() {
		d.Fit(records)
	}

	for i, r := range records {
		reports[i] = d.Detect(r)
	}

	t := Tally(reports)
	d.logger.Info("anomaly detection complete",
		"records", len(records),
		"word_count_outliers", t.WordCountOutliers,
		"readability_outliers", t.ReadabilityOutliers,
		"duplicate_risks", t.DuplicateRisks,
		"style_mismatches", t.StyleMismatches)
	return reports
}

// Stats returns a snapshot of the fitted baselines, or nil when unfitted.
func (d *Detector) Stats() *domain.BaselineStats {
	b := d.fitted.Load()
	if b == nil {
		return nil
	}
	s := &domain.BaselineStats{}
	if b.wordCount != nil {
		wc := *b.wordCount
		s.WordCount = &wc
	}
	if b.readability != nil {
		rb := *b.readability
		s.Readability = &rb
	}
	if b.index != nil {
		s.IndexBuilt = true
		s.IndexDocs = b.index.Docs()
		s.IndexTerms = b.index.Terms()
	}
	return s
}

// Tally counts reports per rule.
func Tally(reports []domain.AnomalyReport) domain.AnomalyTally {
	var t domain.AnomalyTally
	for _, r := range reports {
		if r.WordCountOutlier {
			t.WordCountOutliers++
		}
		if r.ReadabilityOutlier {
			t.ReadabilityOutliers++
		}
		if r.DuplicateRisk {
			t.DuplicateRisks++
		}
		if r.StyleMismatch {
			t.StyleMismatches++
		}
	}
	return t
}
