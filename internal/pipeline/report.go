package pipeline

import (
	"math"

	"github.com/listenupapp/moments-pipeline/internal/anomaly"
	"github.com/listenupapp/moments-pipeline/internal/domain"
	"github.com/listenupapp/moments-pipeline/internal/metrics"
)

// tallyReport fills the counts of a run report from the processed records.
func tallyReport(r *domain.RunReport, passages []domain.PassageRecord, users []domain.UserRecord,
	moments []domain.MomentRecord, anomalies []domain.AnomalyReport,
) {
	r.Passages.Total = len(passages)
	for _, p := range passages {
		if p.IsValid {
			r.Passages.Valid++
		}
	}

	r.Users.Total = len(users)

	ms := make([]domain.Metrics, len(moments))
	r.Interpretations.Total = len(moments)
	for i, m := range moments {
		ms[i] = m.Metrics
		if m.IsValid {
			r.Interpretations.Valid++
		} else {
			r.Interpretations.Invalid++
		}
		if m.DetectedIssues.HasPII {
			r.IssuesDetected.PII++
		}
		if m.DetectedIssues.HasProfanity {
			r.IssuesDetected.Profanity++
		}
		if m.DetectedIssues.IsSpam {
			r.IssuesDetected.Spam++
		}
	}
	r.Interpretations.ValidityRate = validityRate(r.Interpretations.Valid, r.Interpretations.Total)

	for _, a := range anomalies {
		if a.Any() {
			r.AnomaliesDetected++
		}
	}
	r.AnomalyBreakdown = anomaly.Tally(anomalies)
	r.DatasetStats = metrics.DatasetStats(ms)
}

// validityRate is valid/total as a percentage rounded to two decimals.
func validityRate(valid, total int) float64 {
	return math.Round(float64(valid)/float64(max(total, 1))*100*100) / 100
}
