// Package issues flags advisory content problems: personal data, profanity
// and spam patterns. Findings never affect a record's validity.
package issues

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/listenupapp/moments-pipeline/internal/cleaner"
	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// DefaultProfanity is the word list used when none is configured.
var DefaultProfanity = []string{
	"damn", "hell", "crap", "ass", "bastard", "bitch",
	"shit", "fuck", "piss", "dick", "cock", "cunt",
	"whore", "slut", "fag", "retard",
}

// DefaultSpamPhrases is the phrase list used when none is configured.
var DefaultSpamPhrases = []string{
	"click here",
	"buy now",
	"free money",
	"you won",
	"congratulations you",
	"limited time offer",
	"act now",
	"call now",
	"order now",
	"visit our website",
}

var (
	rePhone      = regexp.MustCompile(`(\+?1?\s?)?(\(?\d{3}\)?[\s.\-]?)(\d{3}[\s.\-]?\d{4})`)
	reSSN        = regexp.MustCompile(`\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`)
	reCreditCard = regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)
)

const minPhoneDigits = 10

// PIIConfig toggles the individual PII checks.
type PIIConfig struct {
	Emails       bool `yaml:"check_emails"`
	PhoneNumbers bool `yaml:"check_phone_numbers"`
	SSN          bool `yaml:"check_ssn"`
	CreditCards  bool `yaml:"check_credit_cards"`
}

// ProfanityConfig controls ratio-gated profanity detection.
type ProfanityConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RatioThreshold float64  `yaml:"ratio_threshold"`
	Words          []string `yaml:"words"`
}

// SpamConfig controls the spam heuristics.
type SpamConfig struct {
	Enabled                  bool     `yaml:"enabled"`
	CapsThreshold            float64  `yaml:"caps_threshold"`
	PunctuationThreshold     float64  `yaml:"punctuation_threshold"`
	RepetitiveChars          int      `yaml:"repetitive_chars"`
	RepetitiveWordsThreshold float64  `yaml:"repetitive_words_threshold"`
	Phrases                  []string `yaml:"phrases"`
}

// Config groups the detector settings.
type Config struct {
	PII       PIIConfig       `yaml:"pii"`
	Profanity ProfanityConfig `yaml:"profanity"`
	Spam      SpamConfig      `yaml:"spam"`
}

// DefaultConfig enables every check with the standard thresholds.
func DefaultConfig() Config {
	return Config{
		PII: PIIConfig{Emails: true, PhoneNumbers: true, SSN: true, CreditCards: true},
		Profanity: ProfanityConfig{
			Enabled:        true,
			RatioThreshold: 0.30,
		},
		Spam: SpamConfig{
			Enabled:                  true,
			CapsThreshold:            0.50,
			PunctuationThreshold:     0.10,
			RepetitiveChars:          4,
			RepetitiveWordsThreshold: 0.30,
		},
	}
}

// Detector runs the issue checks. Safe for concurrent use.
type Detector struct {
	cfg       Config
	profanity map[string]struct{}
	phrases   []string
	matcher   *ahocorasick.Matcher
	logger    *slog.Logger
}

// NewDetector creates a detector. Empty word and phrase lists fall back to
// the defaults.
func NewDetector(cfg Config, log *slog.Logger) *Detector {
	words := cfg.Profanity.Words
	if len(words) == 0 {
		words = DefaultProfanity
	}
	profanity := make(map[string]struct{}, len(words))
	for _, w := range words {
		profanity[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	phrases := cfg.Spam.Phrases
	if len(phrases) == 0 {
		phrases = DefaultSpamPhrases
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}

	if cfg.Spam.RepetitiveChars < 2 {
		cfg.Spam.RepetitiveChars = 2
	}

	return &Detector{
		cfg:       cfg,
		profanity: profanity,
		phrases:   lowered,
		matcher:   ahocorasick.NewStringMatcher(lowered),
		logger:    logger.OrDiscard(log),
	}
}

// Detect runs every enabled check on a cleaned text.
func (d *Detector) Detect(text string) domain.IssueReport {
	report := domain.IssueReport{PIITypes: []string{}, SpamReasons: []string{}}
	if strings.TrimSpace(text) == "" {
		return report
	}

	report.PIITypes = d.detectPII(text)
	report.HasPII = len(report.PIITypes) > 0
	report.HasProfanity, report.ProfanityRatio = d.detectProfanity(text)
	report.SpamReasons = d.detectSpam(text)
	report.IsSpam = len(report.SpamReasons) > 0

	if report.HasPII || report.HasProfanity || report.IsSpam {
		d.logger.Debug("issues detected",
			"pii", report.PIITypes,
			"profanity", report.HasProfanity,
			"spam", report.SpamReasons)
	}
	return report
}

// DetectBatch runs Detect over texts in order.
func (d *Detector) DetectBatch(texts []string) []domain.IssueReport {
	reports := make([]domain.IssueReport, len(texts))
	var pii, profane, spam int
	for i, text := range texts {
		reports[i] = d.Detect(text)
		if reports[i].HasPII {
			pii++
		}
		if reports[i].HasProfanity {
			profane++
		}
		if reports[i].IsSpam {
			spam++
		}
	}
	d.logger.Info("issue detection complete", "pii", pii, "profanity", profane, "spam", spam, "total", len(texts))
	return reports
}

func (d *Detector) detectPII(text string) []string {
	types := []string{}
	if d.cfg.PII.Emails && cleaner.EmailPattern.MatchString(text) {
		types = append(types, domain.PIIEmail)
	}
	if d.cfg.PII.PhoneNumbers && hasPhoneNumber(text) {
		types = append(types, domain.PIIPhoneNumber)
	}
	if d.cfg.PII.SSN && reSSN.MatchString(text) {
		types = append(types, domain.PIISSN)
	}
	if d.cfg.PII.CreditCards && reCreditCard.MatchString(text) {
		types = append(types, domain.PIICreditCard)
	}
	return types
}

// hasPhoneNumber filters out short digit runs such as years or page numbers.
func hasPhoneNumber(text string) bool {
	for _, m := range rePhone.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= minPhoneDigits {
			return true
		}
	}
	return false
}

// detectProfanity flags a text only when profane words make up at least the
// configured share of its words, so literary text with an occasional strong
// word is not flagged.
func (d *Detector) detectProfanity(text string) (bool, float64) {
	if !d.cfg.Profanity.Enabled {
		return false, 0
	}
	words := asciiWords(strings.ToLower(text))
	if len(words) == 0 {
		return false, 0
	}
	profane := 0
	for _, w := range words {
		if _, ok := d.profanity[w]; ok {
			profane++
		}
	}
	ratio := float64(profane) / float64(len(words))
	return profane > 0 && ratio >= d.cfg.Profanity.RatioThreshold, math.Round(ratio*10000) / 10000
}

func (d *Detector) detectSpam(text string) []string {
	reasons := []string{}
	if !d.cfg.Spam.Enabled {
		return reasons
	}

	var letters, upper, punct int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case isWordRune(r), unicode.IsSpace(r):
		default:
			punct++
		}
	}
	if letters > 0 {
		if ratio := float64(upper) / float64(letters); ratio > d.cfg.Spam.CapsThreshold {
			reasons = append(reasons, fmt.Sprintf("excessive_caps: %s uppercase", percent(ratio)))
		}
	}
	if n := utf8.RuneCountInString(text); n > 0 {
		if ratio := float64(punct) / float64(n); ratio > d.cfg.Spam.PunctuationThreshold {
			reasons = append(reasons, fmt.Sprintf("excessive_punctuation: %s punctuation", percent(ratio)))
		}
	}

	if hasCharRun(text, d.cfg.Spam.RepetitiveChars) {
		reasons = append(reasons, fmt.Sprintf("repetitive_chars: same char repeated %d+ times", d.cfg.Spam.RepetitiveChars))
	}

	if words := asciiWords(strings.ToLower(text)); len(words) > 0 {
		word, count := mostCommon(words)
		if ratio := float64(count) / float64(len(words)); ratio > d.cfg.Spam.RepetitiveWordsThreshold {
			reasons = append(reasons, fmt.Sprintf("repetitive_words: '%s' appears %s of words", word, percent(ratio)))
		}
	}

	hits := d.matcher.Match([]byte(strings.ToLower(text)))
	slices.Sort(hits)
	for _, i := range hits {
		reasons = append(reasons, fmt.Sprintf("spam_phrase: '%s'", d.phrases[i]))
	}
	return reasons
}

// asciiWords returns the maximal word-character runs of text that consist
// only of ASCII letters. Runs mixing in digits or accented letters are
// dropped whole rather than split.
func asciiWords(text string) []string {
	var words []string
	start := -1
	ascii := true
	flush := func(end int) {
		if start >= 0 && ascii {
			words = append(words, text[start:end])
		}
		start, ascii = -1, true
	}
	for i, r := range text {
		if !isWordRune(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			ascii = false
		}
	}
	flush(len(text))
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) || r == '_'
}

// hasCharRun reports whether any rune other than a newline repeats n or more
// times in a row.
func hasCharRun(text string, n int) bool {
	var prev rune = -1
	run := 0
	for _, r := range text {
		if r == prev && r != '\n' {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n && r != '\n' {
			return true
		}
	}
	return false
}

// mostCommon returns the most frequent word; ties go to the word seen first.
func mostCommon(words []string) (string, int) {
	counts := make(map[string]int, len(words))
	order := make([]string, 0, len(words))
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	best := order[0]
	for _, w := range order[1:] {
		if counts[w] > counts[best] {
			best = w
		}
	}
	return best, counts[best]
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
