package detectors

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/driftguardstack/driftguard-engine/internal/models"
)

// trend fits an ordinary-least-squares line through the last lookback window
// values (index against value) and flags the observation when its distance
// from the extrapolated fit exceeds twice the residual standard deviation.
func trend(values []float64, value float64, lookback int) models.DetectionResult {
	if len(values) < lookback {
		return notAnomalous()
	}
	recent := values[len(values)-lookback:]
	n := float64(len(recent))

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range recent {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return notAnomalous()
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	// The candidate is the last window entry; compare against the fit at
	// its own index rather than a one-step extrapolation.
	predicted := slope*(n-1) + intercept
	predErr := math.Abs(value - predicted)

	residuals := make([]float64, len(recent))
	for i, y := range recent {
		residuals[i] = y - (slope*float64(i) + intercept)
	}
	residualStd := stat.StdDev(residuals, nil)

	scoreDenom := residualStd
	if scoreDenom < scoreEpsilon {
		scoreDenom = scoreEpsilon
	}
	score := predErr / scoreDenom
	return models.DetectionResult{
		IsAnomaly: residualStd > 0 && predErr > 2*residualStd,
		Score:     score,
		Diagnostics: map[string]float64{
			"slope":            slope,
			"intercept":        intercept,
			"predicted_value":  predicted,
			"prediction_error": predErr,
			"residual_std":     residualStd,
			"anomaly_score":    score,
		},
	}
}
