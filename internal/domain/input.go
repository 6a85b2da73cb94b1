// Package domain contains the record types that flow through the moments
// pipeline: raw input rows, per-record analysis results and the output
// collections.
package domain

// Interpretation is one reader's free-text response to a passage, as read from
// the interpretations source. Immutable once read.
type Interpretation struct {
	Book          string `json:"book" validate:"required"`
	PassageRef    string `json:"passage_id" validate:"required"`
	CharacterID   int    `json:"character_id"`
	CharacterName string `json:"character_name" validate:"required"`
	Text          string `json:"interpretation" validate:"notblank"`
	WordCount     int    `json:"word_count" validate:"gte=0"`
}

// Passage is one source passage row. Number and the numeric columns are kept
// as read so a bad value only affects its own row.
type Passage struct {
	Number             string `json:"passage_id" validate:"required"`
	BookTitle          string `json:"book_title" validate:"required"`
	BookAuthor         string `json:"book_author"`
	ChapterNumber      string `json:"chapter_number"`
	PassageTitle       string `json:"passage_title"`
	Text               string `json:"passage_text" validate:"notblank"`
	NumInterpretations string `json:"num_interpretations"`
}

// ReaderProfile is one row of the character/reader profile source.
type ReaderProfile struct {
	Name                 string   `json:"Name" validate:"required"`
	DistributionCategory string   `json:"Distribution_Category"`
	Gender               string   `json:"Gender"`
	Age                  string   `json:"Age"`
	Profession           string   `json:"Profession"`
	Personality          string   `json:"Personality"`
	Interest             string   `json:"Interest"`
	ReadingIntensity     string   `json:"Reading_Intensity"`
	ReadingCount         string   `json:"Reading_Count"`
	ExperienceLevel      string   `json:"Experience_Level"`
	ExperienceCount      string   `json:"Experience_Count"`
	Journey              string   `json:"Journey"`
	Styles               []string `json:"styles"`
}

// Experience levels and distribution categories that drive the style check.
const (
	ExperienceNew      = "New"
	ExperienceWellRead = "Well-read"
	CategoryNewReader  = "NEW READER"
)

// BookMetadata is the resolved catalogue entry for a book title.
type BookMetadata struct {
	Title     string `json:"book_title"`
	CatalogID int    `json:"gutenberg_id,omitempty"`
	BookID    string `json:"book_id,omitempty"`
	Author    string `json:"author,omitempty"`
	Found     bool   `json:"found"`
	Source    string `json:"source"`
}

// Metadata sources, in lookup order.
const (
	SourceCache  = "cache"
	SourceAPI    = "api"
	SourceConfig = "config"
	SourceNone   = "none"
)
