// Package normalize canonicalises the loosely formatted values found in input
// files and collaborator responses: language identifiers, book titles and
// catalogue author names.
package normalize

import (
	"strings"

	"golang.org/x/text/language"
)

// languageNames maps English language names, as they appear in
// hand-edited configuration, to ISO 639-1 codes.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var languageNames = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"japanese": "ja", "chinese": "zh", "mandarin": "zh", "korean": "ko",
	"arabic": "ar", "hindi": "hi", "polish": "pl", "swedish": "sv",
	"norwegian": "no", "danish": "da", "finnish": "fi", "turkish": "tr",
	"greek": "el", "hebrew": "he", "persian": "fa", "farsi": "fa",
}

// LanguageCode converts a language identifier to its shortest ISO 639 code.
// It accepts ISO 639-1 ("en"), ISO 639-2/3 ("eng", "cmn"), locale tags
// ("en-US", "en_GB") and English language names ("English").
//
// Returns empty string for unrecognized values.
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(sanitizeString(raw)))
	if s == "" {
		return ""
	}
	if code, ok := languageNames[s]; ok {
		return code
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}
	// Macro canonicalisation folds individual languages such as "cmn"
	// into their macrolanguage.
	tag, err := language.All.Parse(s)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// sanitizeString removes null bytes, which show up in CSV exports from
// spreadsheet tools.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 { // null byte
			return -1 // drop it
		}
		return r
	}, s)
}

// Title canonicalises a book title for use as a lookup key: null bytes are
// dropped, surrounding space trimmed and internal whitespace runs collapsed.
// Case is preserved.
func Title(raw string) string {
	return strings.Join(strings.Fields(sanitizeString(raw)), " ")
}

// AuthorName converts catalogue-style "Last, First" names to "First Last".
// Names without a comma are returned trimmed; an empty name becomes "Unknown".
//
//	"Shelley, Mary Wollstonecraft" -> "Mary Wollstonecraft Shelley"
//	"Fitzgerald, F. Scott (Francis Scott)" -> "F. Scott (Francis Scott) Fitzgerald"
func AuthorName(raw string) string {
	s := strings.TrimSpace(sanitizeString(raw))
	if s == "" {
		return "Unknown"
	}
	last, first, ok := strings.Cut(s, ",")
	if !ok {
		return s
	}
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
