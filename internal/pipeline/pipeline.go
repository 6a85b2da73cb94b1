// Package pipeline runs one preprocessing batch over the reader
// interpretations dataset.
//
// A run has six phases:
//  1. read the three input streams
//  2. resolve book metadata
//  3. process passages (clean, validate, metrics, ids)
//  4. process reader profiles (styles, interpretation counts, books)
//  5. process interpretations in two passes: per-record work first, then
//     anomaly detection once the batch baseline is fitted
//  6. write the collections and the run report to every sink
//
// Failures in phases 1, 2 and 6 abort the run. A record that cannot be
// processed in phases 3 to 5 is skipped and counted in the report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/listenupapp/moments-pipeline/internal/anomaly"
	"github.com/listenupapp/moments-pipeline/internal/cleaner"
	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/id"
	"github.com/listenupapp/moments-pipeline/internal/issues"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/metrics"
	"github.com/listenupapp/moments-pipeline/internal/quality"
	"github.com/listenupapp/moments-pipeline/internal/sink"
	"github.com/listenupapp/moments-pipeline/internal/validation"
)

// InputSource supplies the raw input streams. A missing stream must be
// reported as a NOT_FOUND error.
type InputSource interface {
	ReadInterpretations(ctx context.Context) ([]domain.Interpretation, error)
	ReadPassages(ctx context.Context) ([]domain.Passage, error)
	ReadReaderProfiles(ctx context.Context) ([]domain.ReaderProfile, error)
}

// MetadataLookup resolves a book title to catalogue metadata. Implementations
// fall back internally; an error means the lookup itself could not run.
type MetadataLookup interface {
	ResolveBook(ctx context.Context, title string) (domain.BookMetadata, error)
}

// Config holds run settings.
type Config struct {
	Name    string
	Version string
	// Workers bounds pass-1 parallelism. Zero means runtime.NumCPU().
	Workers int
	IDs     id.Scheme
	// OnProgress, when set, is called on every phase change and record.
	OnProgress func(Progress)
}

// Deps are the collaborators of a run. Nil processors are replaced by
// instances built from their default configuration.
type Deps struct {
	Source    InputSource
	Lookup    MetadataLookup
	Sinks     []sink.Sink
	Cleaner   *cleaner.Cleaner
	Validator *quality.Validator
	Issues    *issues.Detector
	Metrics   *metrics.Calculator
	Anomaly   *anomaly.Detector
	Structure *validation.Validator
}

// Pipeline runs preprocessing batches. A Pipeline may be run repeatedly;
// each run refits the anomaly baseline.
type Pipeline struct {
	cfg       Config
	source    InputSource
	lookup    MetadataLookup
	sinks     []sink.Sink
	cleaner   *cleaner.Cleaner
	validator *quality.Validator
	issues    *issues.Detector
	metrics   *metrics.Calculator
	anomaly   *anomaly.Detector
	structure *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a pipeline. Source, Lookup and at least one sink are required.
func New(cfg Config, deps Deps, log *slog.Logger) (*Pipeline, error) {
	if deps.Source == nil {
		return nil, domainerrors.Internal("pipeline: input source is required")
	}
	if deps.Lookup == nil {
		return nil, domainerrors.Internal("pipeline: metadata lookup is required")
	}
	if len(deps.Sinks) == 0 {
		return nil, domainerrors.Internal("pipeline: at least one output sink is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	l := logger.OrDiscard(log)
	p := &Pipeline{
		cfg:       cfg,
		source:    deps.Source,
		lookup:    deps.Lookup,
		sinks:     deps.Sinks,
		cleaner:   deps.Cleaner,
		validator: deps.Validator,
		issues:    deps.Issues,
		metrics:   deps.Metrics,
		anomaly:   deps.Anomaly,
		structure: deps.Structure,
		logger:    l,
		now:       time.Now,
	}
	if p.cleaner == nil {
		p.cleaner = cleaner.New(cleaner.DefaultOptions(), l)
	}
	if p.validator == nil {
		qc := quality.DefaultConfig()
		p.validator = quality.NewValidator(qc, quality.NewTrigramDetector(qc.LanguageCandidates...), l)
	}
	if p.issues == nil {
		p.issues = issues.NewDetector(issues.DefaultConfig(), l)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewCalculator(metrics.DefaultConfig(), l)
	}
	if p.anomaly == nil {
		p.anomaly = anomaly.New(anomaly.DefaultConfig(), l)
	}
	if p.structure == nil {
		p.structure = validation.New()
	}
	return p, nil
}

// inputs holds the raw streams read in phase 1.
type inputs struct {
	interpretations []domain.Interpretation
	passages        []domain.Passage
	profiles        []domain.ReaderProfile
}

// Run executes one batch. The returned report is non-nil whenever phase 6
// was reached, including when every sink failed.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunReport, error) {
	start := p.now().UTC()
	runID, err := id.RunID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate run id")
	}
	log := p.logger.With("run_id", runID)
	tr := newTracker(p.cfg.OnProgress)
	timestamp := start.Format(time.RFC3339)

	log.Info("pipeline started", "pipeline", p.cfg.Name, "version", p.cfg.Version, "workers", p.cfg.Workers)

	// Phase 1
	tr.setPhase(PhaseRead, 3)
	in, err := p.read(ctx, tr)
	if err != nil {
		log.Error("failed to read input", "error", err)
		return nil, err
	}
	log.Info("raw data loaded",
		"interpretations", len(in.interpretations),
		"passages", len(in.passages),
		"profiles", len(in.profiles))

	// Phase 2
	books, resolved, err := p.resolveBooks(ctx, tr, in)
	if err != nil {
		log.Error("book metadata lookup failed", "error", err)
		return nil, err
	}

	// Phase 3
	passages, err := p.processPassages(ctx, tr, in.passages, books, timestamp)
	if err != nil {
		return nil, err
	}

	// Phase 4
	users, readers, err := p.processUsers(ctx, tr, in.profiles, in.interpretations, timestamp)
	if err != nil {
		return nil, err
	}

	// Phase 5
	moments, err := p.processInterpretations(ctx, tr, in.interpretations, books, readers, timestamp)
	if err != nil {
		return nil, err
	}
	anomalies, err := p.detectAnomalies(ctx, tr, moments, readers)
	if err != nil {
		return nil, err
	}

	report := &domain.RunReport{
		Pipeline:        p.cfg.Name,
		Version:         p.cfg.Version,
		RunID:           runID,
		ProcessingStart: timestamp,
		Books:           resolved,
	}
	if len(moments) > 0 {
		report.Baseline = p.anomaly.Stats()
	}
	tallyReport(report, passages, users, moments, anomalies)
	report.Skipped = tr.skipped()

	// Phase 6
	tr.setPhase(PhaseWrite, 2)
	report.ProcessingEnd = p.now().UTC().Format(time.RFC3339)
	if err := p.write(ctx, log, tr, report, passages, users, moments); err != nil {
		return report, err
	}

	tr.setPhase(PhaseComplete, 0)
	logSummary(log, report)
	return report, nil
}

func (p *Pipeline) read(ctx context.Context, tr *tracker) (inputs, error) {
	var in inputs
	var err error

	if in.interpretations, err = p.source.ReadInterpretations(ctx); err != nil {
		return inputs{}, fmt.Errorf("read interpretations: %w", err)
	}
	tr.increment()
	if in.passages, err = p.source.ReadPassages(ctx); err != nil {
		return inputs{}, fmt.Errorf("read passages: %w", err)
	}
	tr.increment()
	if in.profiles, err = p.source.ReadReaderProfiles(ctx); err != nil {
		return inputs{}, fmt.Errorf("read reader profiles: %w", err)
	}
	tr.increment()
	return in, nil
}

func (p *Pipeline) write(ctx context.Context, log *slog.Logger, tr *tracker, report *domain.RunReport,
	passages []domain.PassageRecord, users []domain.UserRecord, moments []domain.MomentRecord,
) error {
	multi := sink.NewMulti(log, p.sinks...)
	collections := map[string][]domain.Keyed{
		domain.CollectionPassages:        domain.AsKeyed(passages),
		domain.CollectionReaderProfiles:  domain.AsKeyed(users),
		domain.CollectionInterpretations: domain.AsKeyed(moments),
	}

	writeErr := multi.WriteAll(ctx, collections)
	tr.increment()
	reportErr := multi.WriteReport(ctx, report)
	tr.increment()
	report.Outputs = multi.Outcomes()

	succeeded := 0
	for _, ok := range report.Outputs {
		if ok {
			succeeded++
		}
	}
	if succeeded == 0 {
		return domainerrors.Wrap(domainerrors.Join(writeErr, reportErr), domainerrors.CodeOutput, "all output sinks failed")
	}
	if writeErr != nil || reportErr != nil {
		log.Warn("some output sinks failed", "outputs", report.Outputs)
	}
	return nil
}

func logSummary(log *slog.Logger, r *domain.RunReport) {
	log.Info("pipeline complete",
		"interpretations", r.Interpretations.Total,
		"valid", r.Interpretations.Valid,
		"invalid", r.Interpretations.Invalid,
		"validity_rate", r.Interpretations.ValidityRate,
		"passages", r.Passages.Total,
		"users", r.Users.Total,
		"anomalies", r.AnomaliesDetected,
		"skipped", r.Skipped.Total(),
		"start", r.ProcessingStart,
		"end", r.ProcessingEnd)
}
