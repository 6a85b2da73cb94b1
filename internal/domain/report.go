package domain

// RunReport summarises one pipeline run. It is written even when records were
// skipped so the reasons stay visible.
type RunReport struct {
	Pipeline          string                 `json:"pipeline"`
	Version           string                 `json:"version"`
	RunID             string                 `json:"run_id"`
	ProcessingStart   string                 `json:"processing_start"`
	ProcessingEnd     string                 `json:"processing_end"`
	Interpretations   InterpretationTally    `json:"interpretations"`
	Passages          PassageTally           `json:"passages"`
	Users             UserTally              `json:"users"`
	AnomaliesDetected int                    `json:"anomalies_detected"`
	AnomalyBreakdown  AnomalyTally           `json:"anomaly_breakdown"`
	IssuesDetected    IssueTally             `json:"issues_detected"`
	Skipped           SkipTally              `json:"skipped"`
	Books             []BookMetadata         `json:"books"`
	Baseline          *BaselineStats         `json:"baseline,omitempty"`
	DatasetStats      map[string]MetricStats `json:"dataset_stats,omitempty"`
	Outputs           map[string]bool        `json:"outputs"`
}

// InterpretationTally counts processed interpretations.
type InterpretationTally struct {
	Total        int     `json:"total"`
	Valid        int     `json:"valid"`
	Invalid      int     `json:"invalid"`
	ValidityRate float64 `json:"validity_rate"`
}

// PassageTally counts processed passages.
type PassageTally struct {
	Total int `json:"total"`
	Valid int `json:"valid"`
}

// UserTally counts processed reader profiles.
type UserTally struct {
	Total int `json:"total"`
}

// AnomalyTally counts records per anomaly rule.
type AnomalyTally struct {
	WordCountOutliers   int `json:"word_count_outliers"`
	ReadabilityOutliers int `json:"readability_outliers"`
	DuplicateRisks      int `json:"duplicate_risks"`
	StyleMismatches     int `json:"style_mismatches"`
}

// IssueTally counts records carrying each advisory issue.
type IssueTally struct {
	PII       int `json:"pii"`
	Profanity int `json:"profanity"`
	Spam      int `json:"spam"`
}

// SkipTally counts records dropped per phase and per error code, with one
// line per skip.
type SkipTally struct {
	Passages        int            `json:"passages"`
	Users           int            `json:"users"`
	Interpretations int            `json:"interpretations"`
	ByCode          map[string]int `json:"by_code"`
	Reasons         []string       `json:"reasons"`
}

// Total returns the number of skipped records across phases.
func (s SkipTally) Total() int {
	return s.Passages + s.Users + s.Interpretations
}

// MetricStats is the batch distribution of one numeric metric.
type MetricStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Q1   float64 `json:"q1"`
	Q3   float64 `json:"q3"`
	IQR  float64 `json:"iqr"`
}

// BaselineStats is a snapshot of the fitted anomaly baselines.
type BaselineStats struct {
	WordCount   *WordCountBaseline   `json:"word_count_stats"`
	Readability *ReadabilityBaseline `json:"readability_stats"`
	IndexBuilt  bool                 `json:"tfidf_built"`
	IndexDocs   int                  `json:"tfidf_docs"`
	IndexTerms  int                  `json:"tfidf_features"`
}

// WordCountBaseline holds the positional-quartile bounds.
type WordCountBaseline struct {
	Q1         int     `json:"q1"`
	Q3         int     `json:"q3"`
	IQR        int     `json:"iqr"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// ReadabilityBaseline holds the readability mean and (floored) std.
type ReadabilityBaseline struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}
