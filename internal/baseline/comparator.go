package baseline

import (
	"fmt"
	"math"

	"github.com/driftguardstack/driftguard-engine/internal/models"
)

// Comparator classifies live metric values against their baselines using
// the configured threshold table.
type Comparator struct {
	thresholds *ThresholdTable
}

// NewComparator creates a comparator; a nil threshold table means every
// metric falls back to the default percentage rules.
func NewComparator(thresholds *ThresholdTable) *Comparator {
	if thresholds == nil {
		thresholds = EmptyThresholds()
	}
	return &Comparator{thresholds: thresholds}
}

// Thresholds exposes the underlying threshold table.
func (c *Comparator) Thresholds() *ThresholdTable { return c.thresholds }

// Compare measures current against baseline for one metric. A zero baseline
// with a zero current value is normal; a zero baseline with any other value
// is critical with an infinite percentage change (the deviation is not
// expressible as a percentage of nothing).
func (c *Comparator) Compare(current, baseline float64, metric, comparisonType string) models.ComparisonResult {
	res := models.ComparisonResult{
		MetricName:     metric,
		CurrentValue:   current,
		BaselineValue:  baseline,
		ComparisonType: comparisonType,
	}
	if baseline == 0 {
		if current == 0 {
			res.Status = models.StatusNormal
			return res
		}
		res.AbsoluteDeviation = current
		res.PercentageChange = math.Inf(1)
		res.Status = models.StatusCritical
		return res
	}

	res.AbsoluteDeviation = current - baseline
	res.PercentageChange = res.AbsoluteDeviation / baseline * 100
	res.Ratio = current / baseline
	res.ZScoreEstimate = c.estimateZScore(current, baseline)
	res.Status = c.status(metric, current, res.PercentageChange)
	return res
}

// status applies the metric's threshold row, or the default percentage rules
// when no row exists. All comparisons are strict, so a value exactly at a
// threshold does not trip it.
func (c *Comparator) status(metric string, current, pctChange float64) models.Status {
	th, ok := c.thresholds.Get(metric)
	if !ok {
		switch {
		case math.Abs(pctChange) > 50:
			return models.StatusCritical
		case math.Abs(pctChange) > 25:
			return models.StatusWarning
		default:
			return models.StatusNormal
		}
	}
	switch th.Type {
	case "upper":
		switch {
		case current > th.Critical:
			return models.StatusCritical
		case current > th.Warning:
			return models.StatusWarning
		}
	case "lower":
		switch {
		case current < th.Critical:
			return models.StatusCritical
		case current < th.Warning:
			return models.StatusWarning
		}
	default:
		abs := math.Abs(pctChange)
		switch {
		case abs > th.Critical:
			return models.StatusCritical
		case abs > th.Warning:
			return models.StatusWarning
		}
	}
	return models.StatusNormal
}

// estimateZScore approximates a z-score assuming the baseline's standard
// deviation is 10% of its value. A crude stand-in for real historical
// variance, kept for output compatibility.
func (c *Comparator) estimateZScore(current, baseline float64) float64 {
	std := baseline * 0.1
	if std == 0 {
		return 0
	}
	return (current - baseline) / std
}

// DeviationCategory buckets the absolute percentage change.
func DeviationCategory(pctChange float64) string {
	abs := math.Abs(pctChange)
	switch {
	case abs < 5:
		return models.DeviationMinimal
	case abs < 15:
		return models.DeviationSmall
	case abs < 30:
		return models.DeviationModerate
	case abs < 50:
		return models.DeviationLarge
	default:
		return models.DeviationExtreme
	}
}

// TrendLabel classifies the signed percentage change.
func TrendLabel(pctChange float64) string {
	switch {
	case pctChange > 5:
		return models.TrendIncreasing
	case pctChange < -5:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// AlertMessage renders the human-readable alert line for a non-normal
// comparison result.
func AlertMessage(res models.ComparisonResult, modelID string) string {
	if res.Status == models.StatusNormal {
		return fmt.Sprintf("Model %s: %s is within normal range", modelID, res.MetricName)
	}
	direction := "increased"
	if res.PercentageChange <= 0 {
		direction = "decreased"
	}
	msg := fmt.Sprintf("Model %s: %s has %s by %.1f%% (current: %.3f, baseline: %.3f)",
		modelID, res.MetricName, direction, math.Abs(res.PercentageChange),
		res.CurrentValue, res.BaselineValue)
	switch res.Status {
	case models.StatusCritical:
		return "CRITICAL - " + msg
	case models.StatusWarning:
		return "WARNING - " + msg
	}
	return msg
}
