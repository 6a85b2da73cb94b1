// Package quality scores cleaned texts against type-specific thresholds.
package quality

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Issue tag prefixes. Tags are "<prefix>" or "<prefix>: <detail>".
const (
	IssueEmpty         = "empty_text"
	IssueTooShort      = "too_short"
	IssueTooLong       = "too_long"
	IssueTooFewChars   = "too_few_chars"
	IssueTooManyChars  = "too_many_chars"
	IssueWrongLanguage = "wrong_language"
	IssueGibberish     = "gibberish"
	IssueRepetitive    = "repetitive"
)

// Penalties subtracted from the starting score of 1.0, one per issue.
var penalties = map[string]float64{
	IssueTooShort:      0.3,
	IssueTooLong:       0.3,
	IssueTooFewChars:   0.1,
	IssueTooManyChars:  0.1,
	IssueWrongLanguage: 0.4,
	IssueGibberish:     0.5,
	IssueRepetitive:    0.3,
}

const (
	idealLengthBonus = 0.05

	// Texts shorter than this many runes skip language identification.
	minLanguageRunes = 20

	minGibberishLetters = 10
	minVowelRatio       = 0.15
	maxVowelRatio       = 0.60

	minRepetitiveChars = 20
	maxTopCharRatio    = 0.40

	// Non-empty texts never score below this, so a zero score always
	// means empty input.
	minNonEmptyScore = 0.0001
)

// Thresholds bound one text type.
type Thresholds struct {
	MinWords         int     `yaml:"min_words"`
	MaxWords         int     `yaml:"max_words"`
	MinChars         int     `yaml:"min_chars"`
	MaxChars         int     `yaml:"max_chars"`
	QualityThreshold float64 `yaml:"quality_threshold"`
}

// Config holds the thresholds per text type and the expected language.
type Config struct {
	Interpretation   Thresholds `yaml:"interpretations"`
	Passage          Thresholds `yaml:"passages"`
	ExpectedLanguage string     `yaml:"expected_language"`
	// LanguageCandidates restricts detection to these ISO 639-3 codes.
	// Empty means every language whatlanggo knows.
	LanguageCandidates []string `yaml:"language_candidates"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Interpretation: Thresholds{
			MinWords: 10, MaxWords: 600,
			MinChars: 50, MaxChars: 4000,
			QualityThreshold: 0.5,
		},
		Passage: Thresholds{
			MinWords: 20, MaxWords: 1000,
			MinChars: 100, MaxChars: 6000,
			QualityThreshold: 0.6,
		},
		ExpectedLanguage: "en",
	}
}

// Validator scores texts. It is safe for concurrent use when its
// LanguageDetector is.
type Validator struct {
	cfg      Config
	detector LanguageDetector
	logger   *slog.Logger
}

// NewValidator creates a validator. A nil detector disables the language check.
func NewValidator(cfg Config, detector LanguageDetector, log *slog.Logger) *Validator {
	if cfg.ExpectedLanguage == "" {
		cfg.ExpectedLanguage = "en"
	}
	return &Validator{cfg: cfg, detector: detector, logger: logger.OrDiscard(log)}
}

// Thresholds returns the threshold set used for the given text type.
// Unknown types use the interpretation thresholds.
func (v *Validator) Thresholds(tt domain.TextType) Thresholds {
	if tt == domain.TextPassage {
		return v.cfg.Passage
	}
	return v.cfg.Interpretation
}

// Validate runs every check on text and returns the combined verdict.
// Checks are independent; one failing does not stop the others.
func (v *Validator) Validate(text string, tt domain.TextType) domain.ValidationResult {
	if strings.TrimSpace(text) == "" {
		return domain.ValidationResult{
			IsValid:       false,
			QualityScore:  0,
			QualityIssues: []string{IssueEmpty},
			Language:      LanguageUnknown,
		}
	}

	th := v.Thresholds(tt)
	issues := make([]string, 0, 4)

	wordCount := len(strings.Fields(text))
	switch {
	case wordCount < th.MinWords:
		issues = append(issues, fmt.Sprintf("%s: %d words (min: %d)", IssueTooShort, wordCount, th.MinWords))
	case wordCount > th.MaxWords:
		issues = append(issues, fmt.Sprintf("%s: %d words (max: %d)", IssueTooLong, wordCount, th.MaxWords))
	}

	charCount := utf8.RuneCountInString(text) - strings.Count(text, " ")
	switch {
	case charCount < th.MinChars:
		issues = append(issues, fmt.Sprintf("%s: %d chars (min: %d)", IssueTooFewChars, charCount, th.MinChars))
	case charCount > th.MaxChars:
		issues = append(issues, fmt.Sprintf("%s: %d chars (max: %d)", IssueTooManyChars, charCount, th.MaxChars))
	}

	language := v.detectLanguage(text)
	if language != v.cfg.ExpectedLanguage {
		issues = append(issues, fmt.Sprintf("%s: detected '%s' (expected: %s)", IssueWrongLanguage, language, v.cfg.ExpectedLanguage))
	}

	if isGibberish(text) {
		issues = append(issues, IssueGibberish+": abnormal vowel/consonant ratio")
	}
	if isRepetitive(text) {
		issues = append(issues, IssueRepetitive+": low character diversity")
	}

	score := qualityScore(wordCount, th, issues)
	result := domain.ValidationResult{
		IsValid:       len(issues) == 0 && score >= th.QualityThreshold,
		QualityScore:  score,
		QualityIssues: issues,
		WordCount:     wordCount,
		CharCount:     charCount,
		Language:      language,
	}

	if !result.IsValid {
		v.logger.Debug("text failed validation", "type", tt, "issues", issues, "score", score)
	}
	return result
}

// ValidateBatch validates texts in order.
func (v *Validator) ValidateBatch(texts []string, tt domain.TextType) []domain.ValidationResult {
	results := make([]domain.ValidationResult, len(texts))
	valid := 0
	for i, text := range texts {
		results[i] = v.Validate(text, tt)
		if results[i].IsValid {
			valid++
		}
	}
	v.logger.Info("batch validation complete", "type", tt, "valid", valid, "total", len(texts))
	return results
}

func (v *Validator) detectLanguage(text string) string {
	if utf8.RuneCountInString(text) < minLanguageRunes || v.detector == nil {
		return v.cfg.ExpectedLanguage
	}
	lang, err := v.detector.Detect(text)
	if err != nil {
		v.logger.Debug("language detection failed", "error", err)
		return LanguageUnknown
	}
	return lang
}

func isGibberish(text string) bool {
	letters, vowels := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch unicode.ToLower(r) {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		}
	}
	if letters < minGibberishLetters {
		return false
	}
	ratio := float64(vowels) / float64(letters)
	return ratio < minVowelRatio || ratio > maxVowelRatio
}

func isRepetitive(text string) bool {
	counts := make(map[rune]int)
	total, top := 0, 0
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		counts[r]++
		if counts[r] > top {
			top = counts[r]
		}
	}
	if total < minRepetitiveChars {
		return false
	}
	return float64(top)/float64(total) > maxTopCharRatio
}

func qualityScore(wordCount int, th Thresholds, issues []string) float64 {
	score := 1.0
	for _, issue := range issues {
		score -= penalties[IssueTag(issue)]
	}
	if wordCount >= th.MinWords && wordCount <= th.MaxWords/2 {
		score = math.Min(1, score+idealLengthBonus)
	}
	score = math.Max(minNonEmptyScore, math.Min(1, score))
	return math.Round(score*10000) / 10000
}

// IssueTag returns the tag part of an issue string, e.g. "too_short".
func IssueTag(issue string) string {
	tag, _, _ := strings.Cut(issue, ":")
	return tag
}
