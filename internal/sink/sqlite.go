package sink

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores collections in one table each.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path, sets pragmas and
// applies the schema.
func OpenSQLite(path string, log *slog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck,gosec // Already failing
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close() //nolint:errcheck,gosec // Already failing
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	l := logger.OrDiscard(log)
	l.Info("sqlite sink opened", "path", path)
	return &SQLite{db: db, path: path, logger: l}, nil
}

// Name implements Sink.
func (s *SQLite) Name() string { return "sqlite" }

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Write replaces the collection's table contents in one transaction.
func (s *SQLite) Write(ctx context.Context, collection string, records []domain.Keyed) error {
	if err := checkRecords(collection, records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "begin %s", collection)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	// Table names come from the fixed collection list.
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+collection); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "clear %s", collection)
	}

	// Colliding ids keep the last record, matching the key-value sinks.
	for _, r := range records {
		if err := insertRecord(ctx, tx, r); err != nil {
			return domainerrors.Wrapf(err, domainerrors.CodeOutput, "insert %s %s", collection, r.Key())
		}
	}

	if err := tx.Commit(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "commit %s", collection)
	}
	s.logger.Info("collection written", "collection", collection, "records", len(records), "path", s.path)
	return nil
}

// WriteReport upserts the report under its run id.
func (s *SQLite) WriteReport(ctx context.Context, report *domain.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_reports (run_id, processing_start, processing_end, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET processing_start = excluded.processing_start,
		     processing_end = excluded.processing_end, data = excluded.data`,
		report.RunID, report.ProcessingStart, report.ProcessingEnd, string(data))
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "write report")
	}
	s.logger.Info("report written", "run_id", report.RunID, "path", s.path)
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, r domain.Keyed) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	switch rec := r.(type) {
	case domain.PassageRecord:
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO passages (passage_id, book_id, book_title, passage_number, is_valid, quality_score, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.PassageID, rec.BookID, rec.BookTitle, rec.PassageNumber, rec.IsValid, rec.QualityScore, string(data))
	case domain.UserRecord:
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO reader_profiles (user_id, character_name, experience_level, total_interpretations, data)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.UserID, rec.CharacterName, rec.ExperienceLevel, rec.TotalInterpretations, string(data))
	case domain.MomentRecord:
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO interpretations (interpretation_id, user_id, book_id, passage_id, is_valid, quality_score, anomalous, duplicate_of, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.InterpretationID, rec.UserID, rec.BookID, rec.PassageID, rec.IsValid, rec.QualityScore,
			rec.Anomalies.Any(), nullableString(rec.Anomalies.DuplicateOf), string(data))
	default:
		return fmt.Errorf("unsupported record type %T", r)
	}
	return err
}

// nullableString returns a sql.NullString from a *string.
func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
