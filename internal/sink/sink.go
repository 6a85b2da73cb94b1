// Package sink persists the processed collections and the run report.
//
// Every sink writes the three collections (passages, reader_profiles,
// interpretations) keyed by record id, plus one run report. Writes are
// whole-collection replacements; re-running over the same input produces
// the same keys.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
)

// Sink is implemented by every output medium.
type Sink interface {
	// Name identifies the sink in logs and the run report.
	Name() string
	Write(ctx context.Context, collection string, records []domain.Keyed) error
	WriteReport(ctx context.Context, report *domain.RunReport) error
	Close() error
}

// Collections lists the output collections in write order.
var Collections = []string{
	domain.CollectionPassages,
	domain.CollectionReaderProfiles,
	domain.CollectionInterpretations,
}

// File names used by sinks that store one document per collection.
var fileNames = map[string]string{
	domain.CollectionPassages:        "books_processed.json",
	domain.CollectionReaderProfiles:  "users_processed.json",
	domain.CollectionInterpretations: "moments_processed.json",
}

// ReportFileName is the file name of the run report.
const ReportFileName = "validation_report.json"

// FileName returns the document name for a collection.
func FileName(collection string) (string, error) {
	name, ok := fileNames[collection]
	if !ok {
		return "", domainerrors.Outputf("unknown collection %q", collection)
	}
	return name, nil
}

// encode renders v as two-space indented JSON with a trailing newline.
// A nil record slice encodes as an empty array.
func encode(v any) ([]byte, error) {
	if rs, ok := v.([]domain.Keyed); ok && rs == nil {
		v = []domain.Keyed{}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// collectionOf returns the collection a record type belongs to.
func collectionOf(r domain.Keyed) string {
	switch r.(type) {
	case domain.PassageRecord:
		return domain.CollectionPassages
	case domain.UserRecord:
		return domain.CollectionReaderProfiles
	case domain.MomentRecord:
		return domain.CollectionInterpretations
	default:
		return ""
	}
}

// checkRecords rejects records that do not belong to collection.
func checkRecords(collection string, records []domain.Keyed) error {
	if _, err := FileName(collection); err != nil {
		return err
	}
	for _, r := range records {
		if got := collectionOf(r); got != collection {
			return domainerrors.Outputf("record %T does not belong to %s", r, collection)
		}
	}
	return nil
}
