package detectors

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/driftguardstack/driftguard-engine/internal/models"
)

// isolationCutoff is the fixed score above which a point counts as isolated.
const isolationCutoff = 2.0

// isolation approximates isolation-forest behaviour on one dimension: a
// point whose mean distance to the rest of the window is large relative to
// the spread of those distances is isolated. Values identical to the
// candidate contribute no distance; a window of only identical values yields
// a normal verdict.
func isolation(values []float64, value float64) models.DetectionResult {
	if len(values) < minSamplesIsolation {
		return notAnomalous()
	}
	distances := make([]float64, 0, len(values))
	for _, v := range values {
		if v != value {
			distances = append(distances, math.Abs(value-v))
		}
	}
	if len(distances) == 0 {
		return notAnomalous()
	}
	avg := stat.Mean(distances, nil)
	std := 0.0
	if len(distances) > 1 {
		std = stat.StdDev(distances, nil)
	}
	denom := std
	if denom < scoreEpsilon {
		denom = scoreEpsilon
	}
	score := avg / denom
	return models.DetectionResult{
		IsAnomaly: score > isolationCutoff,
		Score:     score,
		Diagnostics: map[string]float64{
			"avg_distance":    avg,
			"std_distance":    std,
			"isolation_score": score,
			"sample_size":     float64(len(values)),
		},
	}
}
