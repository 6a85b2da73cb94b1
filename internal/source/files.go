// Package source reads the raw pipeline inputs: interpretations from a JSON
// array, passages and reader profiles from CSV files with a header row.
//
// Readers return rows as found. Structural validation and numeric parsing
// happen downstream so a bad row only affects itself; a missing or
// undecodable file is fatal and reported as NOT_FOUND or MALFORMED.
package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Paths locates the three input files.
type Paths struct {
	Interpretations string
	Passages        string
	Characters      string
}

// Files reads inputs from the local filesystem.
type Files struct {
	paths        Paths
	titleMapping map[string]string
	logger       *slog.Logger
}

// NewFiles creates a file source. titleMapping rewrites raw passage book
// titles (after trimming) to their canonical form.
func NewFiles(paths Paths, titleMapping map[string]string, log *slog.Logger) *Files {
	return &Files{paths: paths, titleMapping: titleMapping, logger: logger.OrDiscard(log)}
}

// ReadInterpretations decodes the interpretations JSON array.
func (f *Files) ReadInterpretations(ctx context.Context) ([]domain.Interpretation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := open("interpretations", f.paths.Interpretations)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck // Read-only file

	var rows []domain.Interpretation
	if err := json.NewDecoder(file).Decode(&rows); err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeMalformed, "decode interpretations file %s", f.paths.Interpretations)
	}

	f.logger.Info("interpretations loaded", "path", f.paths.Interpretations, "rows", len(rows))
	return rows, nil
}

// ReadPassages reads the passages CSV and applies the title mapping.
func (f *Files) ReadPassages(ctx context.Context) ([]domain.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := readCSV("passages", f.paths.Passages, "passage_id", "book_title", "passage_text")
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Passage, 0, len(table.records))
	for _, rec := range table.records {
		p := domain.Passage{
			Number:             table.get(rec, "passage_id"),
			BookTitle:          strings.TrimSpace(table.get(rec, "book_title")),
			BookAuthor:         table.get(rec, "book_author"),
			ChapterNumber:      table.get(rec, "chapter_number"),
			PassageTitle:       table.get(rec, "passage_title"),
			Text:               table.get(rec, "passage_text"),
			NumInterpretations: table.get(rec, "num_interpretations"),
		}
		if mapped, ok := f.titleMapping[p.BookTitle]; ok {
			f.logger.Debug("book title normalized", "from", p.BookTitle, "to", mapped)
			p.BookTitle = mapped
		}
		rows = append(rows, p)
	}

	f.logger.Info("passages loaded", "path", f.paths.Passages, "rows", len(rows))
	return rows, nil
}

// ReadReaderProfiles reads the character CSV. Non-empty Style_1..Style_4
// columns are collected in order.
func (f *Files) ReadReaderProfiles(ctx context.Context) ([]domain.ReaderProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := readCSV("characters", f.paths.Characters, "Name")
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ReaderProfile, 0, len(table.records))
	for _, rec := range table.records {
		p := domain.ReaderProfile{
			Name:                 table.get(rec, "Name"),
			DistributionCategory: table.get(rec, "Distribution_Category"),
			Gender:               table.get(rec, "Gender"),
			Age:                  table.get(rec, "Age"),
			Profession:           table.get(rec, "Profession"),
			Personality:          table.get(rec, "Personality"),
			Interest:             table.get(rec, "Interest"),
			ReadingIntensity:     table.get(rec, "Reading_Intensity"),
			ReadingCount:         table.get(rec, "Reading_Count"),
			ExperienceLevel:      table.get(rec, "Experience_Level"),
			ExperienceCount:      table.get(rec, "Experience_Count"),
			Journey:              table.get(rec, "Journey"),
			Styles:               []string{},
		}
		for i := 1; i <= 4; i++ {
			if s := strings.TrimSpace(table.get(rec, fmt.Sprintf("Style_%d", i))); s != "" {
				p.Styles = append(p.Styles, s)
			}
		}
		rows = append(rows, p)
	}

	f.logger.Info("reader profiles loaded", "path", f.paths.Characters, "rows", len(rows))
	return rows, nil
}

func open(kind, path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if domainerrors.Is(err, fs.ErrNotExist) {
			return nil, domainerrors.NotFoundf("%s file not found: %s", kind, path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeMalformed, "open %s file %s", kind, path)
	}
	return file, nil
}

// csvTable is a decoded CSV file addressed by header name.
type csvTable struct {
	columns map[string]int
	records [][]string
}

// get returns the cell for column, or "" when the column is absent or the
// row is short.
func (t csvTable) get(rec []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func readCSV(kind, path string, required ...string) (csvTable, error) {
	file, err := open(kind, path)
	if err != nil {
		return csvTable{}, err
	}
	defer file.Close() //nolint:errcheck // Read-only file

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return csvTable{}, domainerrors.Malformedf("%s file %s is empty", kind, path)
	}
	if err != nil {
		return csvTable{}, domainerrors.Wrapf(err, domainerrors.CodeMalformed, "read %s header", kind)
	}

	t := csvTable{columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.columns[name] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return csvTable{}, domainerrors.Malformedf("%s file %s has no %q column", kind, path, col)
		}
	}

	t.records, err = r.ReadAll()
	if err != nil {
		return csvTable{}, domainerrors.Wrapf(err, domainerrors.CodeMalformed, "read %s file %s", kind, path)
	}
	return t, nil
}
