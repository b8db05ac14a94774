package detectors

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/driftguardstack/driftguard-engine/internal/models"
)

// zscore flags value when it sits more than threshold sample standard
// deviations from the window mean. A degenerate window (zero spread) is
// treated as normal.
func zscore(values []float64, value, threshold float64) models.DetectionResult {
	if len(values) < minSamplesBasic {
		return notAnomalous()
	}
	mean := stat.Mean(values, nil)
	stdev := stat.StdDev(values, nil)
	if stdev == 0 {
		return notAnomalous()
	}
	z := (value - mean) / stdev
	return models.DetectionResult{
		IsAnomaly: math.Abs(z) > threshold,
		Score:     math.Abs(z),
		Diagnostics: map[string]float64{
			"mean":        mean,
			"stdev":       stdev,
			"zscore":      z,
			"threshold":   threshold,
			"sample_size": float64(len(values)),
		},
	}
}
