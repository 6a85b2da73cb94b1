package quality

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/normalize"
)

// LanguageUnknown is recorded when a language cannot be determined.
const LanguageUnknown = "unknown"

// LanguageDetector identifies the language of a text as an ISO 639-1 code.
// Implementations return an error when no language can be determined.
type LanguageDetector interface {
	Detect(text string) (string, error)
}

// TrigramDetector identifies languages with whatlanggo's trigram profiles.
// It holds no state and is safe for concurrent use.
type TrigramDetector struct {
	opts whatlanggo.Options
}

// NewTrigramDetector creates a detector. When candidates is non-empty only
// those languages (ISO 639-3 codes, e.g. "eng", "fra") are considered.
func NewTrigramDetector(candidates ...string) *TrigramDetector {
	d := &TrigramDetector{}
	if len(candidates) == 0 {
		return d
	}
	d.opts.Whitelist = make(map[whatlanggo.Lang]bool, len(candidates))
	for _, c := range candidates {
		if lang := whatlanggo.CodeToLang(strings.ToLower(strings.TrimSpace(c))); lang != -1 {
			d.opts.Whitelist[lang] = true
		}
	}
	return d
}

// Detect returns the ISO 639-1 code of text, falling back to the 639-3 code
// for languages without a two-letter code.
func (d *TrigramDetector) Detect(text string) (string, error) {
	info := whatlanggo.DetectWithOptions(text, d.opts)
	code3 := info.Lang.Iso6393()
	if code3 == "" {
		return "", errors.Unavailablef("no language detected")
	}
	if code := normalize.LanguageCode(code3); code != "" {
		return code, nil
	}
	return code3, nil
}
