package detectors

import (
	"sort"

	"github.com/driftguardstack/driftguard-engine/internal/models"
)

// iqr flags value when it falls outside [Q1 - m*IQR, Q3 + m*IQR]. Quartiles
// are positional: Q1 = sorted[n/4], Q3 = sorted[3n/4]. The score scales the
// distance past the violated bound by the IQR itself.
func iqr(values []float64, value, multiplier float64) models.DetectionResult {
	if len(values) < minSamplesBasic {
		return notAnomalous()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[3*n/4]
	spread := q3 - q1
	lower := q1 - multiplier*spread
	upper := q3 + multiplier*spread

	anomaly := value < lower || value > upper
	score := 0.0
	if anomaly {
		denom := spread
		if denom < scoreEpsilon {
			denom = scoreEpsilon
		}
		if value < lower {
			score = (lower - value) / denom
		} else {
			score = (value - upper) / denom
		}
	}
	return models.DetectionResult{
		IsAnomaly: anomaly,
		Score:     score,
		Diagnostics: map[string]float64{
			"q1":          q1,
			"q3":          q3,
			"iqr":         spread,
			"lower_bound": lower,
			"upper_bound": upper,
			"multiplier":  multiplier,
			"sample_size": float64(n),
		},
	}
}
