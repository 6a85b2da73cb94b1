package domain

// TextType selects the threshold set a text is validated against.
type TextType string

// Supported text types.
const (
	TextInterpretation TextType = "interpretation"
	TextPassage        TextType = "passage"
)

// ValidationResult is the scored structural verdict for one text.
// QualityScore is 0 exactly when QualityIssues contains "empty_text".
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	QualityScore  float64  `json:"quality_score"`
	QualityIssues []string `json:"quality_issues"`
	WordCount     int      `json:"word_count"`
	CharCount     int      `json:"char_count"`
	Language      string   `json:"language"`
}

// PII categories reported by the issue detector.
const (
	PIIEmail       = "email"
	PIIPhoneNumber = "phone_number"
	PIISSN         = "ssn"
	PIICreditCard  = "credit_card"
)

// IssueReport holds advisory findings. It never affects validity.
type IssueReport struct {
	HasPII         bool     `json:"has_pii"`
	PIITypes       []string `json:"pii_types"`
	HasProfanity   bool     `json:"has_profanity"`
	ProfanityRatio float64  `json:"profanity_ratio"`
	IsSpam         bool     `json:"is_spam"`
	SpamReasons    []string `json:"spam_reasons"`
}

// Metrics are the quantitative statistics of one cleaned text.
type Metrics struct {
	WordCount         int     `json:"word_count"`
	CharCount         int     `json:"char_count"`
	SentenceCount     int     `json:"sentence_count"`
	AvgWordLength     float64 `json:"avg_word_length"`
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	ReadabilityScore  float64 `json:"readability_score"`
}

// AnomalyReport holds the batch-relative findings for one record.
type AnomalyReport struct {
	WordCountOutlier   bool     `json:"word_count_outlier"`
	ReadabilityOutlier bool     `json:"readability_outlier"`
	DuplicateRisk      bool     `json:"duplicate_risk"`
	DuplicateOf        *string  `json:"duplicate_of"`
	StyleMismatch      bool     `json:"style_mismatch"`
	Details            []string `json:"anomaly_details"`
}

// Any reports whether at least one rule fired.
func (r AnomalyReport) Any() bool {
	return r.WordCountOutlier || r.ReadabilityOutlier || r.DuplicateRisk || r.StyleMismatch
}

// NeutralAnomalyReport is the report returned when detection cannot run.
func NeutralAnomalyReport() AnomalyReport {
	return AnomalyReport{Details: []string{}}
}
