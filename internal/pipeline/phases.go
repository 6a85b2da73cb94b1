package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/listenupapp/moments-pipeline/internal/anomaly"
	"github.com/listenupapp/moments-pipeline/internal/cleaner"
	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/id"
	"github.com/listenupapp/moments-pipeline/internal/normalize"
)

// Cleaning changes above this share of the text are logged.
const largeCleaningChangePct = 10

// bookIndex maps normalised titles to found metadata.
type bookIndex map[string]domain.BookMetadata

func (b bookIndex) get(title string) (domain.BookMetadata, error) {
	md, ok := b[normalize.Title(title)]
	if !ok {
		return domain.BookMetadata{}, domainerrors.Validationf("no catalogue entry for book %q", title)
	}
	return md, nil
}

// reader is what interpretation processing needs from a profile.
type reader struct {
	userID  string
	profile *domain.ReaderProfile
}

// resolveBooks looks up every distinct title in passage then interpretation
// order. Titles that resolve nowhere stay in the report with found=false.
func (p *Pipeline) resolveBooks(ctx context.Context, tr *tracker, in inputs) (bookIndex, []domain.BookMetadata, error) {
	var titles []string
	seen := map[string]bool{}
	add := func(title string) {
		key := normalize.Title(title)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		titles = append(titles, strings.TrimSpace(title))
	}
	for _, row := range in.passages {
		add(row.BookTitle)
	}
	for _, row := range in.interpretations {
		add(row.Book)
	}

	tr.setPhase(PhaseLookup, len(titles))
	books := bookIndex{}
	resolved := make([]domain.BookMetadata, 0, len(titles))
	for _, title := range titles {
		md, err := p.lookup.ResolveBook(ctx, title)
		if err != nil {
			if domainerrors.CodeOf(err).Fatal() {
				return nil, nil, fmt.Errorf("resolve %q: %w", title, err)
			}
			p.logger.Warn("book lookup unavailable, treating as not found", "title", title, "error", err)
			md = domain.BookMetadata{Title: title, Source: domain.SourceNone}
		}
		if md.Found {
			books[normalize.Title(title)] = md
		}
		resolved = append(resolved, md)
		tr.increment()
	}

	p.logger.Info("book metadata resolved", "found", len(books), "total", len(titles))
	return books, resolved, nil
}

func (p *Pipeline) processPassages(ctx context.Context, tr *tracker, rows []domain.Passage, books bookIndex, timestamp string) ([]domain.PassageRecord, error) {
	tr.setPhase(PhasePassages, len(rows))
	p.logger.Info("processing passages", "count", len(rows))

	results, errs, err := forEach(ctx, p.cfg.Workers, rows, func(row domain.Passage) (domain.PassageRecord, error) {
		defer tr.increment()
		return p.processPassage(row, books, timestamp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.PassageRecord, 0, len(rows))
	for i, rec := range results {
		if errs[i] != nil {
			key := rows[i].BookTitle + "/" + rows[i].Number
			if err := tr.skip("passage", key, errs[i]); err != nil {
				return nil, err
			}
			p.logger.Warn("skipping passage", "passage", key, "error", errs[i])
			continue
		}
		out = append(out, rec)
	}

	p.logger.Info("passages processed", "processed", len(out), "total", len(rows))
	return out, nil
}

func (p *Pipeline) processPassage(row domain.Passage, books bookIndex, timestamp string) (domain.PassageRecord, error) {
	if err := p.structure.Validate(row); err != nil {
		return domain.PassageRecord{}, err
	}
	number, err := parsePassageNumber(row.Number)
	if err != nil {
		return domain.PassageRecord{}, err
	}
	book, err := books.get(row.BookTitle)
	if err != nil {
		return domain.PassageRecord{}, err
	}

	cleaned := p.clean(row.BookTitle+"/"+row.Number, row.Text)
	v := p.validator.Validate(cleaned, domain.TextPassage)

	chapter := strings.TrimSpace(row.ChapterNumber)
	if chapter == "" {
		chapter = "Unknown"
	}

	return domain.PassageRecord{
		BookID:        book.BookID,
		PassageID:     id.PassageID(book.BookID, number),
		BookTitle:     row.BookTitle,
		BookAuthor:    book.Author,
		ChapterNumber: chapter,
		PassageTitle:  row.PassageTitle,
		PassageNumber: number,
		CleanedText:   cleaned,
		IsValid:       v.IsValid,
		QualityScore:  v.QualityScore,
		QualityIssues: v.QualityIssues,
		Metrics:       p.metrics.Calculate(cleaned),
		Timestamp:     timestamp,
	}, nil
}

// readerActivity is what one reader contributed to the interpretations file.
type readerActivity struct {
	count int
	books map[string]bool
}

func (p *Pipeline) processUsers(ctx context.Context, tr *tracker, rows []domain.ReaderProfile, interpretations []domain.Interpretation, timestamp string) ([]domain.UserRecord, map[string]reader, error) {
	tr.setPhase(PhaseUsers, len(rows))
	p.logger.Info("processing reader profiles", "count", len(rows))

	activity := map[string]*readerActivity{}
	for _, row := range interpretations {
		a, ok := activity[row.CharacterName]
		if !ok {
			a = &readerActivity{books: map[string]bool{}}
			activity[row.CharacterName] = a
		}
		a.count++
		if b := strings.TrimSpace(row.Book); b != "" {
			a.books[b] = true
		}
	}

	results, errs, err := forEach(ctx, p.cfg.Workers, rows, func(row domain.ReaderProfile) (domain.UserRecord, error) {
		defer tr.increment()
		return p.processUser(row, activity[row.Name], timestamp)
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]domain.UserRecord, 0, len(rows))
	readers := make(map[string]reader, len(rows))
	for i, rec := range results {
		if errs[i] != nil {
			if err := tr.skip("reader profile", rows[i].Name, errs[i]); err != nil {
				return nil, nil, err
			}
			p.logger.Warn("skipping reader profile", "name", rows[i].Name, "error", errs[i])
			continue
		}
		out = append(out, rec)
		if _, dup := readers[rows[i].Name]; !dup {
			readers[rows[i].Name] = reader{userID: rec.UserID, profile: &rows[i]}
		}
	}

	p.logger.Info("reader profiles processed", "processed", len(out), "total", len(rows))
	return out, readers, nil
}

func (p *Pipeline) processUser(row domain.ReaderProfile, a *readerActivity, timestamp string) (domain.UserRecord, error) {
	if err := p.structure.Validate(row); err != nil {
		return domain.UserRecord{}, err
	}

	styles := make([]string, 0, len(row.Styles))
	for _, s := range row.Styles {
		if s = strings.TrimSpace(s); s != "" {
			styles = append(styles, s)
		}
	}

	total := 0
	books := []string{}
	if a != nil {
		total = a.count
		for b := range a.books {
			books = append(books, b)
		}
		slices.Sort(books)
	}

	return domain.UserRecord{
		UserID:               p.cfg.IDs.UserID(row.Name),
		CharacterName:        row.Name,
		Gender:               row.Gender,
		Age:                  parseCount(p.logger, row.Name, "Age", row.Age),
		Profession:           row.Profession,
		DistributionCategory: row.DistributionCategory,
		Personality:          row.Personality,
		Interest:             row.Interest,
		ReadingIntensity:     row.ReadingIntensity,
		ReadingCount:         parseCount(p.logger, row.Name, "Reading_Count", row.ReadingCount),
		ExperienceLevel:      row.ExperienceLevel,
		ExperienceCount:      parseCount(p.logger, row.Name, "Experience_Count", row.ExperienceCount),
		Journey:              row.Journey,
		ReadingStyles:        styles,
		TotalInterpretations: total,
		BooksInterpreted:     books,
		Timestamp:            timestamp,
	}, nil
}

// processInterpretations is pass 1: every record is built without anomaly
// fields.
func (p *Pipeline) processInterpretations(ctx context.Context, tr *tracker, rows []domain.Interpretation, books bookIndex, readers map[string]reader, timestamp string) ([]domain.MomentRecord, error) {
	tr.setPhase(PhaseInterpretations, len(rows))
	p.logger.Info("processing interpretations", "count", len(rows))

	results, errs, err := forEach(ctx, p.cfg.Workers, rows, func(row domain.Interpretation) (domain.MomentRecord, error) {
		defer tr.increment()
		return p.processInterpretation(row, books, readers, timestamp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.MomentRecord, 0, len(rows))
	for i, rec := range results {
		if errs[i] != nil {
			key := interpretationKey(rows[i])
			if err := tr.skip("interpretation", key, errs[i]); err != nil {
				return nil, err
			}
			p.logger.Warn("skipping interpretation", "interpretation", key, "error", errs[i])
			continue
		}
		out = append(out, rec)
	}

	p.logger.Info("first pass complete", "processed", len(out), "total", len(rows))
	return out, nil
}

func (p *Pipeline) processInterpretation(row domain.Interpretation, books bookIndex, readers map[string]reader, timestamp string) (domain.MomentRecord, error) {
	if err := p.structure.Validate(row); err != nil {
		return domain.MomentRecord{}, err
	}
	number, err := parsePassageNumber(row.PassageRef)
	if err != nil {
		return domain.MomentRecord{}, err
	}
	book, err := books.get(row.Book)
	if err != nil {
		return domain.MomentRecord{}, err
	}

	passageID := id.PassageID(book.BookID, number)
	userID := p.cfg.IDs.UserID(row.CharacterName)
	if r, ok := readers[row.CharacterName]; ok {
		userID = r.userID
	}

	cleaned := p.clean(interpretationKey(row), row.Text)
	v := p.validator.Validate(cleaned, domain.TextInterpretation)

	return domain.MomentRecord{
		InterpretationID:  p.cfg.IDs.RecordID(row.CharacterName, passageID, cleaned),
		UserID:            userID,
		BookID:            book.BookID,
		PassageID:         passageID,
		BookTitle:         row.Book,
		PassageNumber:     number,
		CharacterID:       row.CharacterID,
		CharacterName:     row.CharacterName,
		CleanedText:       cleaned,
		OriginalWordCount: row.WordCount,
		IsValid:           v.IsValid,
		QualityScore:      v.QualityScore,
		QualityIssues:     v.QualityIssues,
		DetectedIssues:    p.issues.Detect(cleaned),
		Metrics:           p.metrics.Calculate(cleaned),
		Timestamp:         timestamp,
	}, nil
}

// detectAnomalies is pass 2. The baseline is fitted over the whole batch
// and published before any record is evaluated.
func (p *Pipeline) detectAnomalies(ctx context.Context, tr *tracker, moments []domain.MomentRecord, readers map[string]reader) ([]domain.AnomalyReport, error) {
	tr.setPhase(PhaseAnomalies, len(moments))

	records := make([]anomaly.Record, len(moments))
	for i, m := range moments {
		records[i] = anomaly.Record{ID: m.InterpretationID, Text: m.CleanedText, Metrics: m.Metrics}
		if r, ok := readers[m.CharacterName]; ok {
			records[i].Profile = r.profile
		}
	}

	if len(records) == 0 {
		p.logger.Warn("no interpretations to fit, skipping anomaly detection")
		return nil, nil
	}
	p.anomaly.Fit(records)

	reports, _, err := forEach(ctx, p.cfg.Workers, records, func(r anomaly.Record) (domain.AnomalyReport, error) {
		defer tr.increment()
		return p.anomaly.Detect(r), nil
	})
	if err != nil {
		return nil, err
	}

	for i := range moments {
		moments[i].Anomalies = reports[i]
	}

	t := anomaly.Tally(reports)
	p.logger.Info("anomaly detection complete",
		"records", len(reports),
		"word_count_outliers", t.WordCountOutliers,
		"readability_outliers", t.ReadabilityOutliers,
		"duplicate_risks", t.DuplicateRisks,
		"style_mismatches", t.StyleMismatches)
	return reports, nil
}

func (p *Pipeline) clean(key, text string) string {
	cleaned := p.cleaner.Clean(text)
	if s := cleaner.Summarize(text, cleaned); s.LengthChangePct > largeCleaningChangePct {
		p.logger.Debug("cleaning changed text length", "record", key,
			"original_length", s.OriginalLength, "cleaned_length", s.CleanedLength, "change_pct", s.LengthChangePct)
	}
	return cleaned
}

func interpretationKey(row domain.Interpretation) string {
	return fmt.Sprintf("%s/%s/%s", row.CharacterName, row.Book, row.PassageRef)
}
