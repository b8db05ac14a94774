package models

// DetectionResult is the uniform output of every anomaly detector.
type DetectionResult struct {
	IsAnomaly   bool
	Score       float64
	Diagnostics map[string]float64
}

// ComparisonResult captures a baseline comparison for a single metric.
type ComparisonResult struct {
	MetricName        string
	CurrentValue      float64
	BaselineValue     float64
	AbsoluteDeviation float64
	PercentageChange  float64
	Ratio             float64
	ZScoreEstimate    float64
	Status            Status
	ComparisonType    string
}

// DriftReport carries the drift scorer's verdict for one text sample.
type DriftReport struct {
	Score              float64
	Detected           bool
	BaselineSimilarity float64
	RecentSimilarity   float64
	Severity           Severity
}

// Severity is the ordinal classification for anomaly and drift signals.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinimal  Severity = "minimal"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is the baseline comparison outcome.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Deviation-magnitude categories derived from |percentage change|.
const (
	DeviationMinimal  = "minimal"
	DeviationSmall    = "small"
	DeviationModerate = "moderate"
	DeviationLarge    = "large"
	DeviationExtreme  = "extreme"
)

// Trend labels derived from signed percentage change.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)
