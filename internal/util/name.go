// Package util provides common string helpers shared by identifier generation
// and input normalisation.
package util

import (
	"regexp"
	"strings"
)

const unknownName = "unknown"

var (
	// Apostrophes and hyphens are dropped so "O'Connor" stays one token.
	joinerRe = regexp.MustCompile(`['\-]`)
	// Anything outside [a-z0-9] becomes a separator.
	nonAlphanumericRe    = regexp.MustCompile(`[^a-z0-9]`)
	multipleUnderscoreRe = regexp.MustCompile(`_+`)
)

// SanitizeName converts a display name into a token safe for identifiers.
//
// Normalization rules:
//  1. Lowercase
//  2. Drop apostrophes and hyphens
//  3. Replace every other non-alphanumeric character with an underscore
//  4. Collapse runs of underscores
//  5. Trim leading/trailing underscores
//
// An empty input, or one with no alphanumerics left, yields "unknown".
//
// Examples:
//
//	"Emma Chen"          → "emma_chen"
//	"Dr. James Fletcher" → "dr_james_fletcher"
//	"Ryan O'Connor"      → "ryan_oconnor"
//	"Mary-Jane"          → "maryjane"
func SanitizeName(name string) string {
	if name == "" {
		return unknownName
	}

	s := strings.ToLower(name)
	s = joinerRe.ReplaceAllString(s, "")
	s = nonAlphanumericRe.ReplaceAllString(s, "_")
	s = multipleUnderscoreRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if s == "" {
		return unknownName
	}
	return s
}

// TruncateRunes returns the first n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
