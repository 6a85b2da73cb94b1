// Package metrics computes quantitative statistics for cleaned texts and
// aggregates them across a dataset.
package metrics

import (
	"log/slog"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Metric names used as keys in dataset statistics.
const (
	WordCount         = "word_count"
	CharCount         = "char_count"
	SentenceCount     = "sentence_count"
	AvgWordLength     = "avg_word_length"
	AvgSentenceLength = "avg_sentence_length"
	ReadabilityScore  = "readability_score"
)

// Sentence fragments shorter than this are dropped.
const minSentenceRunes = 3

// Config toggles individual metrics. Disabled metrics are left at zero.
type Config struct {
	Readability       bool `yaml:"calculate_readability"`
	WordCount         bool `yaml:"calculate_word_count"`
	CharCount         bool `yaml:"calculate_char_count"`
	SentenceCount     bool `yaml:"calculate_sentence_count"`
	AvgWordLength     bool `yaml:"calculate_avg_word_length"`
	AvgSentenceLength bool `yaml:"calculate_avg_sentence_length"`
}

// DefaultConfig enables every metric.
func DefaultConfig() Config {
	return Config{
		Readability:       true,
		WordCount:         true,
		CharCount:         true,
		SentenceCount:     true,
		AvgWordLength:     true,
		AvgSentenceLength: true,
	}
}

// Calculator computes per-text metrics. Safe for concurrent use.
type Calculator struct {
	cfg    Config
	logger *slog.Logger
}

// NewCalculator creates a calculator.
func NewCalculator(cfg Config, log *slog.Logger) *Calculator {
	return &Calculator{cfg: cfg, logger: logger.OrDiscard(log)}
}

// Calculate returns the metrics of text. Empty text yields all zeros.
func (c *Calculator) Calculate(text string) domain.Metrics {
	var m domain.Metrics
	if strings.TrimSpace(text) == "" {
		return m
	}

	words := strings.Fields(text)
	sentences := SplitSentences(text)

	if c.cfg.WordCount {
		m.WordCount = len(words)
	}
	if c.cfg.CharCount {
		m.CharCount = countNonSpace(text)
	}
	if c.cfg.SentenceCount {
		m.SentenceCount = len(sentences)
	}
	if c.cfg.AvgWordLength {
		m.AvgWordLength = avgWordLength(words)
	}
	if c.cfg.AvgSentenceLength && len(words) > 0 {
		m.AvgSentenceLength = round(float64(len(words))/float64(len(sentences)), 2)
	}
	if c.cfg.Readability {
		m.ReadabilityScore = FleschReadingEase(text)
	}
	return m
}

// CalculateBatch returns metrics for texts in order.
func (c *Calculator) CalculateBatch(texts []string) []domain.Metrics {
	out := make([]domain.Metrics, len(texts))
	for i, text := range texts {
		out[i] = c.Calculate(text)
	}
	c.logger.Info("metrics calculated", "texts", len(texts))
	return out
}

// SplitSentences splits text after '.', '!' or '?' followed by whitespace,
// and at newline runs. Fragments shorter than three runes are dropped; if
// nothing survives, the whole text is one sentence.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	emit := func(end int) {
		if s := strings.TrimSpace(text[start:end]); utf8.RuneCountInString(s) >= minSentenceRunes {
			sentences = append(sentences, s)
		}
	}

	var prev rune
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\n':
			emit(i)
			for i < len(text) && text[i] == '\n' {
				i++
			}
			start = i
			prev = '\n'
			continue
		case unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?'):
			emit(i)
			for i < len(text) {
				r2, s2 := utf8.DecodeRuneInString(text[i:])
				if !unicode.IsSpace(r2) || r2 == '\n' {
					break
				}
				i += s2
			}
			start = i
			prev = ' '
			continue
		}
		prev = r
		i += size
	}
	emit(len(text))

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func countNonSpace(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// avgWordLength counts only ASCII letters, so punctuation does not
// lengthen words.
func avgWordLength(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	letters := 0
	for _, w := range words {
		for _, r := range w {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
				letters++
			}
		}
	}
	return round(float64(letters)/float64(len(words)), 2)
}

// DatasetStats aggregates each metric across records: population mean and
// standard deviation, extremes, and positional quartiles (n/4, 3n/4).
func DatasetStats(records []domain.Metrics) map[string]domain.MetricStats {
	if len(records) == 0 {
		return map[string]domain.MetricStats{}
	}

	columns := map[string][]float64{}
	for _, m := range records {
		columns[WordCount] = append(columns[WordCount], float64(m.WordCount))
		columns[CharCount] = append(columns[CharCount], float64(m.CharCount))
		columns[SentenceCount] = append(columns[SentenceCount], float64(m.SentenceCount))
		columns[AvgWordLength] = append(columns[AvgWordLength], m.AvgWordLength)
		columns[AvgSentenceLength] = append(columns[AvgSentenceLength], m.AvgSentenceLength)
		columns[ReadabilityScore] = append(columns[ReadabilityScore], m.ReadabilityScore)
	}

	stats := make(map[string]domain.MetricStats, len(columns))
	for name, values := range columns {
		stats[name] = Summarize(values)
	}
	return stats
}

// Summarize computes the statistics of one column. Values are rounded to
// four decimals.
func Summarize(values []float64) domain.MetricStats {
	n := len(values)
	if n == 0 {
		return domain.MetricStats{}
	}
	mean, std := MeanStd(values)
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q1, q3 := sorted[n/4], sorted[(3*n)/4]
	return domain.MetricStats{
		Mean: round(mean, 4),
		Std:  round(std, 4),
		Min:  round(sorted[0], 4),
		Max:  round(sorted[n-1], 4),
		Q1:   round(q1, 4),
		Q3:   round(q3, 4),
		IQR:  round(q3-q1, 4),
	}
}

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
