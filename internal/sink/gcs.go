package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

const uploadTimeout = 2 * time.Minute

// ObjectWriter opens a writer for one named object.
type ObjectWriter interface {
	NewWriter(ctx context.Context, name, contentType string) io.WriteCloser
}

// bucketWriter adapts a storage bucket handle to ObjectWriter.
type bucketWriter struct {
	bucket *storage.BucketHandle
}

func (b bucketWriter) NewWriter(ctx context.Context, name, contentType string) io.WriteCloser {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// GCS writes each collection and the report as JSON objects under a
// bucket prefix, using the same document names as the file sink.
type GCS struct {
	objects ObjectWriter
	client  *storage.Client
	bucket  string
	prefix  string
	logger  *slog.Logger
}

// NewGCS creates a storage client and a sink for bucket. Credentials come
// from the environment unless opts override them.
func NewGCS(ctx context.Context, bucket, prefix string, log *slog.Logger, opts ...option.ClientOption) (*GCS, error) {
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s := NewGCSWithWriter(bucketWriter{bucket: client.Bucket(bucket)}, bucket, prefix, log)
	s.client = client
	return s, nil
}

// NewGCSWithWriter creates a sink over an existing object writer.
func NewGCSWithWriter(objects ObjectWriter, bucket, prefix string, log *slog.Logger) *GCS {
	return &GCS{objects: objects, bucket: bucket, prefix: prefix, logger: logger.OrDiscard(log)}
}

// Name implements Sink.
func (s *GCS) Name() string { return "gcs" }

// Close releases the storage client.
func (s *GCS) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Write uploads the collection document.
func (s *GCS) Write(ctx context.Context, collection string, records []domain.Keyed) error {
	name, err := FileName(collection)
	if err != nil {
		return err
	}
	if err := s.upload(ctx, name, records); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "upload %s", collection)
	}
	s.logger.Info("collection written", "collection", collection, "records", len(records), "object", s.objectName(name))
	return nil
}

// WriteReport uploads the report document.
func (s *GCS) WriteReport(ctx context.Context, report *domain.RunReport) error {
	if err := s.upload(ctx, ReportFileName, report); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "upload report")
	}
	s.logger.Info("report written", "object", s.objectName(ReportFileName))
	return nil
}

func (s *GCS) upload(ctx context.Context, name string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.objects.NewWriter(ctx, s.objectName(name), "application/json")
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *GCS) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
