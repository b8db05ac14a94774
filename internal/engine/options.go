package engine

import (
	"fmt"
	"strings"

	"github.com/driftguardstack/driftguard-engine/internal/detectors"
	"github.com/driftguardstack/driftguard-engine/internal/semantic"
	"github.com/driftguardstack/driftguard-engine/internal/window"
)

// Options configures one monitoring session. Empty field names switch the
// corresponding stage off, so a session can run anomaly detection alone or
// the full pipeline.
type Options struct {
	// Anomaly detection.
	Fields          []string
	Method          string
	Threshold       float64
	WindowSize      int
	IncludeAnalysis bool

	// Baseline comparison.
	MetricField    string
	BaselineField  string
	ModelField     string
	ComparisonType string
	GenerateAlerts bool

	// Drift scoring.
	TextField      string
	DriftThreshold float64
	DriftWindow    int

	// Quality metrics and semantic comparison.
	ResponseField    string
	PromptField      string
	TimeField        string
	TokenField       string
	ConfidenceField  string
	IncludeTrends    bool
	SimilarityMethod string
}

// DefaultOptions mirrors the documented option defaults.
func DefaultOptions() Options {
	return Options{
		Method:           "zscore",
		Threshold:        detectors.DefaultThreshold,
		WindowSize:       window.DefaultCapacity,
		IncludeAnalysis:  true,
		ModelField:       "model_id",
		ComparisonType:   "percentage",
		GenerateAlerts:   true,
		DriftThreshold:   0.8,
		DriftWindow:      window.DefaultCapacity,
		SimilarityMethod: string(semantic.MethodCosine),
	}
}

// normalize fills zero values with defaults and validates the selectors,
// returning the resolved detector kinds and similarity method.
func (o *Options) normalize() ([]detectors.Kind, semantic.Method, error) {
	def := DefaultOptions()
	if o.Method == "" {
		o.Method = def.Method
	}
	if o.Threshold <= 0 {
		o.Threshold = def.Threshold
	}
	if o.WindowSize <= 0 {
		o.WindowSize = def.WindowSize
	}
	if o.ModelField == "" {
		o.ModelField = def.ModelField
	}
	if o.ComparisonType == "" {
		o.ComparisonType = def.ComparisonType
	}
	if o.DriftThreshold <= 0 || o.DriftThreshold > 1 {
		o.DriftThreshold = def.DriftThreshold
	}
	if o.DriftWindow <= 0 {
		o.DriftWindow = def.DriftWindow
	}

	for i, f := range o.Fields {
		o.Fields[i] = strings.TrimSpace(f)
	}

	kinds, err := detectors.ParseKinds(o.Method)
	if err != nil {
		return nil, "", fmt.Errorf("invalid detection method: %w", err)
	}
	method, err := semantic.ParseMethod(o.SimilarityMethod)
	if err != nil {
		return nil, "", fmt.Errorf("invalid similarity method: %w", err)
	}
	return kinds, method, nil
}

// ParseFields splits a comma-separated field list.
func ParseFields(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
