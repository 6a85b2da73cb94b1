package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// JSONFiles writes each collection to one indented JSON array file and the
// report to a separate directory.
type JSONFiles struct {
	outputDir string
	reportDir string
	logger    *slog.Logger
}

// NewJSONFiles creates a JSON file sink. Directories are created on write.
func NewJSONFiles(outputDir, reportDir string, log *slog.Logger) *JSONFiles {
	if reportDir == "" {
		reportDir = outputDir
	}
	return &JSONFiles{outputDir: outputDir, reportDir: reportDir, logger: logger.OrDiscard(log)}
}

// Name implements Sink.
func (s *JSONFiles) Name() string { return "json" }

// Write replaces the collection's file.
func (s *JSONFiles) Write(ctx context.Context, collection string, records []domain.Keyed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := FileName(collection)
	if err != nil {
		return err
	}
	path := filepath.Join(s.outputDir, name)
	if err := writeFileAtomic(path, records); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "write %s", collection)
	}
	s.logger.Info("collection written", "collection", collection, "records", len(records), "path", path)
	return nil
}

// WriteReport replaces the report file.
func (s *JSONFiles) WriteReport(ctx context.Context, report *domain.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.reportDir, ReportFileName)
	if err := writeFileAtomic(path, report); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "write report")
	}
	s.logger.Info("report written", "path", path)
	return nil
}

// Close implements Sink.
func (s *JSONFiles) Close() error { return nil }

// writeFileAtomic encodes v to a temp file next to path, then renames it
// into place so readers never see a partial document.
func writeFileAtomic(path string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // Already failing
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
