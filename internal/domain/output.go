package domain

// Output collection names.
const (
	CollectionPassages        = "passages"
	CollectionReaderProfiles  = "reader_profiles"
	CollectionInterpretations = "interpretations"
)

// PassageRecord is one processed source passage.
type PassageRecord struct {
	BookID        string   `json:"book_id"`
	PassageID     string   `json:"passage_id"`
	BookTitle     string   `json:"book_title"`
	BookAuthor    string   `json:"book_author"`
	ChapterNumber string   `json:"chapter_number"`
	PassageTitle  string   `json:"passage_title"`
	PassageNumber int      `json:"passage_number"`
	CleanedText   string   `json:"cleaned_passage_text"`
	IsValid       bool     `json:"is_valid"`
	QualityScore  float64  `json:"quality_score"`
	QualityIssues []string `json:"quality_issues"`
	Metrics       Metrics  `json:"metrics"`
	Timestamp     string   `json:"timestamp"`
}

// Key returns the record's identifier.
func (r PassageRecord) Key() string { return r.PassageID }

// UserRecord is one enriched reader profile.
type UserRecord struct {
	UserID               string   `json:"user_id"`
	CharacterName        string   `json:"character_name"`
	Gender               string   `json:"gender"`
	Age                  int      `json:"age"`
	Profession           string   `json:"profession"`
	DistributionCategory string   `json:"distribution_category"`
	Personality          string   `json:"personality"`
	Interest             string   `json:"interest"`
	ReadingIntensity     string   `json:"reading_intensity"`
	ReadingCount         int      `json:"reading_count"`
	ExperienceLevel      string   `json:"experience_level"`
	ExperienceCount      int      `json:"experience_count"`
	Journey              string   `json:"journey"`
	ReadingStyles        []string `json:"reading_styles"`
	TotalInterpretations int      `json:"total_interpretations"`
	BooksInterpreted     []string `json:"books_interpreted"`
	Timestamp            string   `json:"timestamp"`
}

// Key returns the record's identifier.
func (r UserRecord) Key() string { return r.UserID }

// MomentRecord is one processed interpretation. Anomalies is filled once, after
// the whole batch has been fitted.
type MomentRecord struct {
	InterpretationID  string        `json:"interpretation_id"`
	UserID            string        `json:"user_id"`
	BookID            string        `json:"book_id"`
	PassageID         string        `json:"passage_id"`
	BookTitle         string        `json:"book_title"`
	PassageNumber     int           `json:"passage_number"`
	CharacterID       int           `json:"character_id"`
	CharacterName     string        `json:"character_name"`
	CleanedText       string        `json:"cleaned_interpretation"`
	OriginalWordCount int           `json:"original_word_count"`
	IsValid           bool          `json:"is_valid"`
	QualityScore      float64       `json:"quality_score"`
	QualityIssues     []string      `json:"quality_issues"`
	DetectedIssues    IssueReport   `json:"detected_issues"`
	Metrics           Metrics       `json:"metrics"`
	Anomalies         AnomalyReport `json:"anomalies"`
	Timestamp         string        `json:"timestamp"`
}

// Key returns the record's identifier.
func (r MomentRecord) Key() string { return r.InterpretationID }

// Keyed is implemented by every output record.
type Keyed interface {
	Key() string
}

// AsKeyed converts a typed record slice for the output sinks.
func AsKeyed[T Keyed](records []T) []Keyed {
	out := make([]Keyed, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
