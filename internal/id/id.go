// Package id generates the identifiers attached to pipeline output.
//
// Catalogue-derived identifiers (books, passages, users, interpretations) are
// pure functions of their inputs so that re-running the pipeline over the same
// data reproduces the same keys. Only the run identifier is random.
package id

import (
	"crypto/md5" //nolint:gosec // short content keys, not a security boundary
	"encoding/hex"
	"fmt"
	"strconv"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/listenupapp/moments-pipeline/internal/util"
)

// Default identifier layout.
const (
	DefaultUserPrefix   = "user"
	DefaultRecordPrefix = "moment"
	DefaultHashLength   = 8

	bookPrefix       = "gutenberg"
	recordTextPrefix = 100
)

// Scheme controls the prefixes and hash length of content-derived identifiers.
type Scheme struct {
	UserPrefix   string `yaml:"user_prefix"`
	RecordPrefix string `yaml:"interpretation_prefix"`
	HashLength   int    `yaml:"hash_length"`
}

// DefaultScheme returns the identifier layout used by published datasets.
func DefaultScheme() Scheme {
	return Scheme{
		UserPrefix:   DefaultUserPrefix,
		RecordPrefix: DefaultRecordPrefix,
		HashLength:   DefaultHashLength,
	}
}

func (s Scheme) withDefaults() Scheme {
	d := DefaultScheme()
	if s.UserPrefix == "" {
		s.UserPrefix = d.UserPrefix
	}
	if s.RecordPrefix == "" {
		s.RecordPrefix = d.RecordPrefix
	}
	if s.HashLength <= 0 || s.HashLength > md5.Size*2 {
		s.HashLength = d.HashLength
	}
	return s
}

// UserID builds "user_<sanitized name>_<hash of the original name>". Hashing the
// unsanitized name keeps "Dr. James" and "Dr James" apart.
func (s Scheme) UserID(displayName string) string {
	s = s.withDefaults()
	return s.UserPrefix + "_" + util.SanitizeName(displayName) + "_" + shortHash(displayName, s.HashLength)
}

// RecordID hashes the reader name, passage id and the first 100 characters of
// the cleaned text.
func (s Scheme) RecordID(displayName, passageID, cleanedText string) string {
	s = s.withDefaults()
	input := displayName + "_" + passageID + "_" + util.TruncateRunes(cleanedText, recordTextPrefix)
	return s.RecordPrefix + "_" + shortHash(input, s.HashLength)
}

// BookID returns "gutenberg_<catalogID>". Catalogue ids are already stable so
// they are not hashed.
func BookID(catalogID int) string {
	return bookPrefix + "_" + strconv.Itoa(catalogID)
}

// PassageID returns "<bookID>_passage_<n>".
func PassageID(bookID string, passageNumber int) string {
	return bookID + "_passage_" + strconv.Itoa(passageNumber)
}

// UserID generates a user id with the default scheme.
func UserID(displayName string) string {
	return DefaultScheme().UserID(displayName)
}

// RecordID generates an interpretation id with the default scheme.
func RecordID(displayName, passageID, cleanedText string) string {
	return DefaultScheme().RecordID(displayName, passageID, cleanedText)
}

func shortHash(input string, length int) string {
	sum := md5.Sum([]byte(input)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:length]
}

// RunID creates a unique identifier for one pipeline run.
// Format: run-nanoid (e.g., "run-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy.
func RunID() (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return "run-" + nid, nil
}
