// Package detectors implements the streaming anomaly detectors applied to
// rolling windows of LLM telemetry metrics. Every detector first inserts the
// observation into its window, then judges the value against the window
// contents; below each detector's minimum sample count the verdict is
// "not anomalous, score 0" (cold start, not a rejection).
package detectors

import (
	"fmt"
	"strings"

	"github.com/driftguardstack/driftguard-engine/internal/models"
	"github.com/driftguardstack/driftguard-engine/internal/window"
)

// Kind identifies a detection algorithm.
type Kind string

const (
	KindZScore    Kind = "zscore"
	KindIQR       Kind = "iqr"
	KindIsolation Kind = "isolation"
	KindTrend     Kind = "trend"
)

// AllKinds lists every detector in evaluation order.
var AllKinds = []Kind{KindZScore, KindIQR, KindIsolation, KindTrend}

// ParseKinds resolves a configured method selector into concrete detector
// kinds. The selector "all" expands to the full set at configuration time.
func ParseKinds(method string) ([]Kind, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", "zscore":
		return []Kind{KindZScore}, nil
	case "iqr":
		return []Kind{KindIQR}, nil
	case "isolation":
		return []Kind{KindIsolation}, nil
	case "trend":
		return []Kind{KindTrend}, nil
	case "all":
		return append([]Kind(nil), AllKinds...), nil
	default:
		return nil, fmt.Errorf("unknown detection method %q", method)
	}
}

// Suite evaluates detectors against a session-owned window store. Windows
// are keyed per field and kind so the detectors never share history.
type Suite struct {
	store *window.Store

	// Threshold applies to the z-score detector; Multiplier to IQR. The
	// isolation detector's 2.0 cutoff and the trend lookback of 10 are
	// fixed by the algorithm, not configurable.
	Threshold  float64
	Multiplier float64
}

// Detector defaults matching the reference behaviour.
const (
	DefaultThreshold  = 2.0
	DefaultMultiplier = 1.5
	trendLookback     = 10

	minSamplesBasic     = 10
	minSamplesIsolation = 20

	// scoreEpsilon guards score denominators against zero spread.
	scoreEpsilon = 0.001
)

// NewSuite creates a detector suite over the provided window store.
func NewSuite(store *window.Store, threshold, multiplier float64) *Suite {
	if store == nil {
		store = window.NewStore(window.DefaultCapacity)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	return &Suite{store: store, Threshold: threshold, Multiplier: multiplier}
}

// Key composes the window key for a field/detector pair.
func Key(field string, kind Kind) string {
	return field + "_" + string(kind)
}

// Detect inserts value into the window for (field, kind) and returns the
// detector verdict.
func (s *Suite) Detect(kind Kind, field string, value float64) models.DetectionResult {
	values := s.store.Observe(Key(field, kind), value)
	switch kind {
	case KindZScore:
		return zscore(values, value, s.Threshold)
	case KindIQR:
		return iqr(values, value, s.Multiplier)
	case KindIsolation:
		return isolation(values, value)
	case KindTrend:
		return trend(values, value, trendLookback)
	default:
		return models.DetectionResult{}
	}
}

func notAnomalous() models.DetectionResult {
	return models.DetectionResult{IsAnomaly: false, Score: 0, Diagnostics: nil}
}
