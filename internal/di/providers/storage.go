package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/config"
	"github.com/listenupapp/moments-pipeline/internal/logger"
	"github.com/listenupapp/moments-pipeline/internal/sink"
)

// SinksHandle wraps the configured output sinks for lifecycle management.
type SinksHandle struct {
	Sinks []sink.Sink
}

// Shutdown implements do.Shutdownable.
func (h *SinksHandle) Shutdown() error {
	var errs []error
	for _, s := range h.Sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ProvideSinks opens every sink named in the output configuration.
func ProvideSinks(i do.Injector) (*SinksHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	handle := &SinksHandle{}
	for _, kind := range cfg.Output.Sinks {
		s, err := openSink(cfg, kind, log)
		if err != nil {
			// Release whatever was opened before the failure.
			if closeErr := handle.Shutdown(); closeErr != nil {
				log.Warn("Failed to close sinks after open error", "error", closeErr)
			}
			return nil, err
		}
		handle.Sinks = append(handle.Sinks, s)
	}

	log.Info("Output sinks initialized", "sinks", cfg.Output.Sinks)

	return handle, nil
}

func openSink(cfg *config.Config, kind string, log *logger.Logger) (sink.Sink, error) {
	switch kind {
	case config.SinkJSON:
		return sink.NewJSONFiles(cfg.Paths.OutputDir, cfg.Paths.ReportDir, log.Component("sink.json")), nil
	case config.SinkSQLite:
		s, err := sink.OpenSQLite(cfg.Output.SQLitePath, log.Component("sink.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		return s, nil
	case config.SinkBadger:
		s, err := sink.OpenBadger(cfg.Output.BadgerPath, log.Component("sink.badger"))
		if err != nil {
			return nil, fmt.Errorf("open badger sink: %w", err)
		}
		return s, nil
	case config.SinkGCS:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s, err := sink.NewGCS(ctx, cfg.Output.GCSBucket, cfg.Output.GCSPrefix, log.Component("sink.gcs"))
		if err != nil {
			return nil, fmt.Errorf("open gcs sink: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", kind)
	}
}
