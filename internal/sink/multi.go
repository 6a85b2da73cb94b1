package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Multi fans writes out to several sinks. A failing sink does not stop the
// others; its outcome is recorded as false.
type Multi struct {
	sinks   []Sink
	outcome map[string]bool
	logger  *slog.Logger
}

// NewMulti creates a fan-out over sinks. Each sink starts out as succeeded.
func NewMulti(log *slog.Logger, sinks ...Sink) *Multi {
	outcome := make(map[string]bool, len(sinks))
	for _, s := range sinks {
		outcome[s.Name()] = true
	}
	return &Multi{sinks: sinks, outcome: outcome, logger: logger.OrDiscard(log)}
}

// Names returns the sink names in configuration order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// WriteAll writes every collection to every sink. It returns the joined
// errors; outcomes are available from Outcomes.
func (m *Multi) WriteAll(ctx context.Context, collections map[string][]domain.Keyed) error {
	var errs []error
	for _, s := range m.sinks {
		for _, c := range Collections {
			if err := s.Write(ctx, c, collections[c]); err != nil {
				m.fail(s, "write "+c, err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WriteReport writes the report to every sink. The report's Outputs field is
// filled with the outcomes so far before writing.
func (m *Multi) WriteReport(ctx context.Context, report *domain.RunReport) error {
	report.Outputs = m.Outcomes()

	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteReport(ctx, report); err != nil {
			m.fail(s, "write report", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outcomes returns a copy of the per-sink success flags.
func (m *Multi) Outcomes() map[string]bool {
	out := make(map[string]bool, len(m.outcome))
	for k, v := range m.outcome {
		out[k] = v
	}
	return out
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			m.logger.Warn("failed to close sink", "sink", s.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) fail(s Sink, op string, err error) {
	m.outcome[s.Name()] = false
	m.logger.Error("sink failed", "sink", s.Name(), "op", op, "error", err)
}
