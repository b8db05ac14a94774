package detectors

import "github.com/driftguardstack/driftguard-engine/internal/models"

// ClassifySeverity folds the per-record detector outcomes into one ordinal
// level from the count of firing detectors and the maximum anomaly score.
// Rules apply first-match, so many weak detections still escalate.
func ClassifySeverity(anomalyCount int, maxScore float64) models.Severity {
	switch {
	case anomalyCount == 0:
		return models.SeverityNone
	case anomalyCount == 1 && maxScore < 3:
		return models.SeverityLow
	case anomalyCount <= 2 && maxScore < 5:
		return models.SeverityMedium
	case anomalyCount <= 3 && maxScore < 8:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}
