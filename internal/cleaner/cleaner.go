// Package cleaner normalises raw reader text before it is scored.
//
// Cleaning is format-preserving: it repairs encoding damage, folds typographic
// punctuation to ASCII, applies NFC, redacts email addresses and collapses
// whitespace. It never drops or reorders words. Clean is idempotent.
package cleaner

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Placeholders inserted in place of redacted content.
const (
	EmailPlaceholder = "[EMAIL REMOVED]"
	URLPlaceholder   = "[URL REMOVED]"
)

// Length changes above this share of the original are logged at debug level.
const significantChangePct = 20.0

// Options toggles the individual cleaning steps. Steps always run in the
// order the fields are declared.
type Options struct {
	FixEncoding           bool `yaml:"fix_encoding"`
	FixSmartQuotes        bool `yaml:"fix_smart_quotes"`
	FixDashes             bool `yaml:"fix_dashes"`
	NormalizeUnicode      bool `yaml:"normalize_unicode"`
	RemoveEmails          bool `yaml:"remove_emails"`
	RemoveURLs            bool `yaml:"remove_urls"`
	RemoveExtraWhitespace bool `yaml:"remove_extra_whitespace"`
	Lowercase             bool `yaml:"lowercase"`
}

// DefaultOptions enables every step except URL removal and lowercasing.
func DefaultOptions() Options {
	return Options{
		FixEncoding:           true,
		FixSmartQuotes:        true,
		FixDashes:             true,
		NormalizeUnicode:      true,
		RemoveEmails:          true,
		RemoveURLs:            false,
		RemoveExtraWhitespace: true,
		Lowercase:             false,
	}
}

// EmailPattern matches user@domain.tld addresses. Shared with the issue
// detector so redaction and detection agree.
var EmailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

// Cleaner applies the configured cleaning steps. Safe for concurrent use.
type Cleaner struct {
	opts   Options
	logger *slog.Logger

	quoteReplacer *strings.Replacer
	dashReplacer  *strings.Replacer
	unicodeFold   transform.Transformer
	ellipsis      *strings.Replacer

	reURL        *regexp.Regexp
	reWWW        *regexp.Regexp
	reMultiSpace *regexp.Regexp
	reManyBreaks *regexp.Regexp
}

// New creates a cleaner with precompiled patterns.
func New(opts Options, log *slog.Logger) *Cleaner {
	return &Cleaner{
		opts:   opts,
		logger: logger.OrDiscard(log),

		quoteReplacer: strings.NewReplacer(
			"“", `"`, // left double quotation mark
			"”", `"`, // right double quotation mark
			"‘", "'", // left single quotation mark
			"’", "'", // right single quotation mark
			"«", `"`,
			"»", `"`,
			"„", `"`, // double low-9 quotation mark
			"′", "'", // prime
			"″", `"`, // double prime
		),
		dashReplacer: strings.NewReplacer(
			"—", "--", // em dash
			"―", "--", // horizontal bar
			"–", "-", // en dash
			"‐", "-", // hyphen
			"−", "-", // minus sign
		),
		unicodeFold: transform.Chain(
			norm.NFC,
			runes.Remove(runes.Predicate(isInvisible)),
			runes.Map(foldRune),
		),
		ellipsis: strings.NewReplacer("…", "..."),

		reURL:        regexp.MustCompile(`https?://\S+`),
		reWWW:        regexp.MustCompile(`www\.\S+`),
		reMultiSpace: regexp.MustCompile(` {2,}`),
		reManyBreaks: regexp.MustCompile(`\n{3,}`),
	}
}

// Clean applies all enabled steps to text. Empty input yields empty output.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}
	original := text

	text = c.apply(text)
	if c.opts.Lowercase {
		// Lowering "Â" to "â" can form a new mis-encoded sequence, so the
		// steps repeat until the text is stable.
		for {
			again := c.apply(text)
			if again == text {
				break
			}
			text = again
		}
	}

	if s := Summarize(original, text); s.LengthChangePct > significantChangePct {
		c.logger.Debug("significant length change after cleaning",
			"original_length", s.OriginalLength,
			"cleaned_length", s.CleanedLength,
			"change_pct", s.LengthChangePct,
		)
	}
	return text
}

func (c *Cleaner) apply(text string) string {
	if c.opts.FixEncoding {
		text = repairEncoding(text)
	}
	if c.opts.FixSmartQuotes {
		text = c.quoteReplacer.Replace(text)
	}
	if c.opts.FixDashes {
		text = c.dashReplacer.Replace(text)
	}
	if c.opts.NormalizeUnicode {
		text = c.normalizeUnicode(text)
	}
	if c.opts.RemoveEmails {
		text = EmailPattern.ReplaceAllString(text, EmailPlaceholder)
	}
	if c.opts.RemoveURLs {
		text = c.reURL.ReplaceAllString(text, URLPlaceholder)
		text = c.reWWW.ReplaceAllString(text, URLPlaceholder)
	}
	if c.opts.RemoveExtraWhitespace {
		text = c.collapseWhitespace(text)
	}
	if c.opts.Lowercase {
		text = strings.ToLower(text)
	}
	return text
}

func (c *Cleaner) normalizeUnicode(text string) string {
	folded, _, err := transform.String(c.unicodeFold, text)
	if err != nil {
		// Fall back to plain NFC; the fold transformers only fail on
		// internal buffer errors.
		folded = norm.NFC.String(text)
	}
	return c.ellipsis.Replace(folded)
}

func (c *Cleaner) collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = c.reMultiSpace.ReplaceAllString(text, " ")
	text = c.reManyBreaks.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// repairEncoding strips C0 control characters (other than tab and line
// breaks) and invisible format characters, then undoes UTF-8 sequences that
// were decoded as Windows-1252 or Latin-1 ("Itâ€™s" -> "It’s").
//
// Only sequences led by Â, Ã or â that decode to a Latin-1 letter or sign
// or to typographic punctuation are repaired. Legitimate accented text such
// as "CAFÉ”" or "está—" is left alone. The text is composed to NFC before
// every pass and passes repeat until nothing changes, so the result is a
// fixed point and doubly mis-encoded input is undone in one call.
func repairEncoding(text string) string {
	text = strings.Map(func(r rune) rune {
		if isStrippedControl(r) || isInvisible(r) {
			return -1
		}
		return r
	}, text)

	// Every repair replaces at least two runes with one, so this ends.
	for {
		text = norm.NFC.String(text)
		fixed, changed := undoMojibake(text)
		if !changed {
			return text
		}
		text = fixed
	}
}

func undoMojibake(text string) (string, bool) {
	rs := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	changed := false

	for i := 0; i < len(rs); {
		if r, n := decodeMisread(rs[i:]); n > 0 {
			b.WriteRune(r)
			i += n
			changed = true
			continue
		}
		b.WriteRune(rs[i])
		i++
	}
	return b.String(), changed
}

// decodeMisread checks whether the runes at the start of rs are the
// single-byte rendering of one multi-byte UTF-8 sequence with a mojibake
// lead byte. It returns the original rune and how many runes it spans, or
// n == 0.
func decodeMisread(rs []rune) (r rune, n int) {
	lead, ok := misreadByte(rs[0])
	if !ok || !isMojibakeLead(lead) {
		return 0, 0
	}
	size := sequenceLength(lead)
	if size < 2 || len(rs) < size {
		return 0, 0
	}

	buf := make([]byte, 0, utf8.UTFMax)
	buf = append(buf, lead)
	for _, next := range rs[1:size] {
		c, ok := misreadByte(next)
		if !ok {
			return 0, 0
		}
		buf = append(buf, c)
	}

	decoded, width := utf8.DecodeRune(buf)
	if decoded == utf8.RuneError || width != size || !isRepairTarget(decoded) {
		return 0, 0
	}
	return decoded, size
}

// isMojibakeLead reports whether b is the first byte of the UTF-8 encodings
// that show up as "Â", "Ã" or "â" after a Latin-1 or Windows-1252 misread.
func isMojibakeLead(b byte) bool {
	return b == 0xc2 || b == 0xc3 || b == 0xe2
}

// isRepairTarget limits repairs to Latin-1 letters and signs and to the
// general punctuation block, the characters mis-encoding actually damages.
func isRepairTarget(r rune) bool {
	switch {
	case r >= 0xa0 && r <= 0xff:
		return true
	case r >= 0x2010 && r <= 0x2027:
		return true
	case r >= 0x2030 && r <= 0x205e:
		return true
	case r == '€', r == '™':
		return true
	default:
		return false
	}
}

// misreadByte maps a rune back to the high byte a Latin-1 or Windows-1252
// decoder would have produced it from.
func misreadByte(r rune) (byte, bool) {
	if r >= 0x80 && r <= 0xff {
		return byte(r), true
	}
	if b, ok := charmap.Windows1252.EncodeRune(r); ok && b >= 0x80 {
		return b, true
	}
	return 0, false
}

func sequenceLength(lead byte) int {
	switch {
	case lead >= 0xc2 && lead <= 0xdf:
		return 2
	case lead >= 0xe0 && lead <= 0xef:
		return 3
	case lead >= 0xf0 && lead <= 0xf4:
		return 4
	default:
		return 0
	}
}

func isStrippedControl(r rune) bool {
	switch {
	case r <= 0x08, r == 0x0b, r == 0x0c:
		return true
	case r >= 0x0e && r <= 0x1f:
		return true
	case r == 0x7f:
		return true
	default:
		return false
	}
}

// isInvisible matches zero-width characters and the byte order mark.
func isInvisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	default:
		return false
	}
}

func foldRune(r rune) rune {
	switch r {
	case '•', '‣', '⁃':
		return '*'
	case '\u00a0':
		return ' '
	default:
		return r
	}
}

// Summary describes what cleaning changed in a text.
type Summary struct {
	OriginalLength     int     `json:"original_length"`
	CleanedLength      int     `json:"cleaned_length"`
	LengthChange       int     `json:"length_change"`
	LengthChangePct    float64 `json:"length_change_pct"`
	HadSmartQuotes     bool    `json:"had_smart_quotes"`
	HadEmDashes        bool    `json:"had_em_dashes"`
	HadExtraWhitespace bool    `json:"had_extra_whitespace"`
}

// Summarize compares a text before and after cleaning. Lengths are in runes.
func Summarize(original, cleaned string) Summary {
	before := utf8.RuneCountInString(original)
	after := utf8.RuneCountInString(cleaned)
	delta := before - after
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	return Summary{
		OriginalLength:     before,
		CleanedLength:      after,
		LengthChange:       delta,
		LengthChangePct:    round2(float64(abs) / float64(max(before, 1)) * 100),
		HadSmartQuotes:     strings.ContainsAny(original, "“”‘’"),
		HadEmDashes:        strings.ContainsAny(original, "—–"),
		HadExtraWhitespace: strings.Contains(original, "  ") || strings.ContainsRune(original, '\t'),
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
