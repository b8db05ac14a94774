// Package engine orchestrates per-record monitoring: anomaly detection over
// rolling windows, baseline comparison, drift scoring, quality metrics, and
// semantic comparison. A Session owns all mutable state; records flow
// through it one at a time and come back annotated, never dropped.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/driftguardstack/driftguard-engine/internal/baseline"
	"github.com/driftguardstack/driftguard-engine/internal/detectors"
	"github.com/driftguardstack/driftguard-engine/internal/drift"
	"github.com/driftguardstack/driftguard-engine/internal/models"
	"github.com/driftguardstack/driftguard-engine/internal/quality"
	"github.com/driftguardstack/driftguard-engine/internal/semantic"
	"github.com/driftguardstack/driftguard-engine/internal/window"
)

// Reference bundles the static tables loaded at session start. Any of the
// members may be empty; the affected stages then annotate "no baseline"
// instead of failing.
type Reference struct {
	Baselines      *baseline.BaselineTable
	Thresholds     *baseline.ThresholdTable
	DriftBaselines [][]float64
}

// Session is one isolated monitoring pipeline. Window state, drift history,
// and trend history all live here and reset with the session. Sessions are
// not safe for concurrent use; callers serialize access per stream.
type Session struct {
	logger     *slog.Logger
	opts       Options
	kinds      []detectors.Kind
	simMethod  semantic.Method
	suite      *detectors.Suite
	comparator *baseline.Comparator
	baselines  *baseline.BaselineTable
	scorer     *drift.Scorer
	analyzer   *semantic.Analyzer
	trends     *quality.TrendTracker

	now func() time.Time
}

// NewSession validates opts and builds a session around the reference data.
func NewSession(logger *slog.Logger, opts Options, refs Reference) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kinds, simMethod, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if refs.Baselines == nil {
		refs.Baselines = baseline.EmptyBaselines()
	}
	if refs.Thresholds == nil {
		refs.Thresholds = baseline.EmptyThresholds()
	}

	// The configured threshold doubles as the IQR multiplier, matching the
	// single-knob option surface.
	store := window.NewStore(opts.WindowSize)
	return &Session{
		logger:     logger,
		opts:       opts,
		kinds:      kinds,
		simMethod:  simMethod,
		suite:      detectors.NewSuite(store, opts.Threshold, opts.Threshold),
		comparator: baseline.NewComparator(refs.Thresholds),
		baselines:  refs.Baselines,
		scorer:     drift.NewScorer(refs.DriftBaselines, opts.DriftThreshold, opts.DriftWindow),
		analyzer:   semantic.NewAnalyzer(),
		trends:     quality.NewTrendTracker(),
		now:        time.Now,
	}, nil
}

// Annotate runs every configured stage against the record and returns it
// with the computed fields attached. Stage faults are annotated onto the
// record; the record itself is always returned.
func (s *Session) Annotate(rec models.Record) models.Record {
	if rec == nil {
		rec = models.Record{}
	}
	if len(s.opts.Fields) > 0 {
		s.runStage(rec, "anomaly_detection_error", s.detectAnomalies)
		if _, ok := rec["anomaly_detected"]; !ok {
			rec["anomaly_detected"] = false
		}
	}
	if s.opts.MetricField != "" {
		s.runStage(rec, "baseline_comparison_error", s.compareBaseline)
	}
	if s.opts.TextField != "" {
		s.runStage(rec, "drift_error", s.scoreDrift)
	}
	if s.opts.ResponseField != "" {
		s.runStage(rec, "llm_metrics_error", s.calculateQuality)
	}
	if s.opts.PromptField != "" && s.opts.ResponseField != "" {
		s.runStage(rec, "semantic_comparison_error", s.compareSemantics)
	}
	return rec
}

func (s *Session) runStage(rec models.Record, errField string, fn func(models.Record)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stage fault", slog.String("field", errField), slog.Any("panic", r))
			rec[errField] = fmt.Sprintf("internal error: %v", r)
		}
	}()
	fn(rec)
}

func (s *Session) detectAnomalies(rec models.Record) {
	var types []string
	scores := make(map[string]float64)
	details := make(map[string]map[string]float64)

	for _, field := range s.opts.Fields {
		value, ok, err := rec.Float(field)
		if !ok || err != nil {
			// Missing or non-numeric fields are skipped, not errors; the
			// record may legitimately carry only a subset of the fields.
			continue
		}
		for _, kind := range s.kinds {
			res := s.suite.Detect(kind, field, value)
			if !res.IsAnomaly {
				continue
			}
			name := detectors.Key(field, kind)
			types = append(types, name)
			scores[name] = res.Score
			if s.opts.IncludeAnalysis {
				details[name] = res.Diagnostics
			}
		}
	}

	rec["anomaly_detected"] = len(types) > 0
	rec["anomaly_count"] = len(types)
	rec["anomaly_types"] = strings.Join(types, ",")

	if len(types) > 0 {
		maxScore := 0.0
		for _, score := range scores {
			if score > maxScore {
				maxScore = score
			}
		}
		rec["anomaly_severity"] = string(detectors.ClassifySeverity(len(types), maxScore))
		rec["max_anomaly_score"] = round(maxScore, 4)
		for name, score := range scores {
			rec["anomaly_score_"+name] = round(score, 4)
		}
	} else {
		rec["anomaly_severity"] = string(models.SeverityNone)
		rec["max_anomaly_score"] = 0.0
	}

	if s.opts.IncludeAnalysis && len(details) > 0 {
		if encoded, err := json.Marshal(details); err == nil {
			rec["anomaly_analysis"] = string(encoded)
		}
	}

	rec["anomaly_detection_time"] = s.timestamp()
	rec["anomaly_detection_method"] = s.opts.Method
	rec["anomaly_threshold"] = s.opts.Threshold
}

func (s *Session) compareBaseline(rec models.Record) {
	metric := s.opts.MetricField
	current, ok, err := rec.Float(metric)
	if !ok {
		rec["baseline_comparison_error"] = "Missing metric field: " + metric
		return
	}
	if err != nil {
		rec["baseline_comparison_error"] = fmt.Sprintf("Invalid numeric value for %s", metric)
		return
	}

	modelID, _ := rec.String(s.opts.ModelField)
	if modelID == "" {
		modelID = "default"
	}

	base, have := 0.0, false
	if s.opts.BaselineField != "" {
		if v, ok, err := rec.Float(s.opts.BaselineField); ok && err == nil {
			base, have = v, true
		}
	}
	if !have {
		base, have = s.baselines.Lookup(modelID, metric)
	}
	if !have {
		rec["baseline_comparison_error"] = "No baseline found for metric " + metric
		return
	}

	res := s.comparator.Compare(current, base, metric, s.opts.ComparisonType)
	rec["baseline_comparison_status"] = string(res.Status)
	rec["baseline_current_value"] = round(res.CurrentValue, 4)
	rec["baseline_reference_value"] = round(res.BaselineValue, 4)
	rec["baseline_absolute_deviation"] = round(res.AbsoluteDeviation, 4)
	rec["baseline_percentage_change"] = numericField(res.PercentageChange, 2)
	rec["baseline_ratio"] = round(res.Ratio, 4)
	rec["baseline_z_score"] = round(res.ZScoreEstimate, 2)

	if s.opts.GenerateAlerts && res.Status != models.StatusNormal {
		rec["baseline_alert_message"] = baseline.AlertMessage(res, modelID)
		rec["baseline_alert_severity"] = string(res.Status)
		rec["baseline_alert_time"] = s.timestamp()
	}

	if th, ok := s.comparator.Thresholds().Get(metric); ok {
		rec["baseline_warning_threshold"] = th.Warning
		rec["baseline_critical_threshold"] = th.Critical
		rec["baseline_threshold_type"] = th.Type
	}

	rec["baseline_deviation_category"] = baseline.DeviationCategory(res.PercentageChange)
	rec["baseline_trend"] = baseline.TrendLabel(res.PercentageChange)
	rec["baseline_comparison_time"] = s.timestamp()
	rec["baseline_comparison_method"] = s.opts.ComparisonType
}

func (s *Session) scoreDrift(rec models.Record) {
	text, _ := rec.String(s.opts.TextField)
	if text == "" {
		rec["drift_score"] = 0.0
		rec["drift_detected"] = false
		rec["baseline_similarity"] = 0.0
		return
	}

	rep := s.scorer.Score(text)
	rec["drift_score"] = round(rep.Score, 4)
	rec["drift_detected"] = rep.Detected
	rec["baseline_similarity"] = round(rep.BaselineSimilarity, 4)
	rec["recent_similarity"] = round(rep.RecentSimilarity, 4)
	rec["drift_severity"] = string(rep.Severity)
	if rep.Detected {
		rec["drift_event_time"] = s.timestamp()
	}
}

func (s *Session) calculateQuality(rec models.Record) {
	response, _ := rec.String(s.opts.ResponseField)
	if response == "" {
		rec["llm_metrics_error"] = "Empty response field"
		return
	}
	prompt := ""
	if s.opts.PromptField != "" {
		prompt, _ = rec.String(s.opts.PromptField)
	}

	m := quality.ResponseQuality(response, prompt)
	rec["quality_response_length"] = round(m.ResponseLength, 4)
	rec["quality_word_count"] = round(m.WordCount, 4)
	rec["quality_sentence_count"] = round(m.SentenceCount, 4)
	rec["quality_avg_word_length"] = round(m.AvgWordLength, 4)
	rec["quality_readability_score"] = round(m.Readability, 4)
	rec["quality_coherence_score"] = round(m.Coherence, 4)
	rec["quality_completeness_score"] = round(m.Completeness, 4)
	rec["quality_language_quality"] = round(m.LanguageQuality, 4)
	rec["quality_information_density"] = round(m.InformationDensity, 4)

	responseTime, haveTime := 0.0, false
	if s.opts.TimeField != "" {
		if v, ok, err := rec.Float(s.opts.TimeField); ok && err == nil {
			responseTime, haveTime = v, true
		}
	}
	tokenCount, haveTokens := 0, false
	if s.opts.TokenField != "" {
		if v, ok, err := rec.Float(s.opts.TokenField); ok && err == nil {
			tokenCount, haveTokens = int(v), true
		}
	}
	confidence, haveConfidence := 0.0, false
	if s.opts.ConfidenceField != "" {
		if v, ok, err := rec.Float(s.opts.ConfidenceField); ok && err == nil {
			confidence, haveConfidence = v, true
		}
	}

	if haveTime && haveTokens {
		p := quality.PerformanceMetrics(responseTime, tokenCount, confidence, haveConfidence)
		rec["perf_response_time"] = round(p.ResponseTime, 4)
		rec["perf_tokens_per_second"] = round(p.TokensPerSecond, 4)
		rec["perf_time_per_token"] = round(p.TimePerToken, 4)
		rec["perf_token_count"] = p.TokenCount
		rec["perf_performance_category"] = p.Category
		if p.HasConfidence {
			rec["perf_confidence_score"] = round(p.ConfidenceScore, 4)
			rec["perf_confidence_category"] = p.ConfidenceCategory
		}
	}

	if s.opts.IncludeTrends {
		current := map[string]float64{"coherence_score": m.Coherence}
		if haveTime {
			current["response_time"] = responseTime
		}
		if haveTokens {
			current["token_count"] = float64(tokenCount)
		}
		if haveConfidence {
			current["confidence_score"] = confidence
		}
		for _, tr := range s.trends.Observe(current) {
			rec["trend_"+tr.Metric+"_trend_pct"] = round(tr.PctChange, 4)
			rec["trend_"+tr.Metric+"_trend_direction"] = tr.Direction
			if tr.HasVolatility {
				rec["trend_"+tr.Metric+"_volatility"] = round(tr.Volatility, 4)
			}
		}
	}

	rec["overall_quality_score"] = round(m.Overall(), 4)
	rec["metrics_calculated_at"] = s.timestamp()
}

func (s *Session) compareSemantics(rec models.Record) {
	text1, _ := rec.String(s.opts.PromptField)
	text2, _ := rec.String(s.opts.ResponseField)
	if text1 == "" || text2 == "" {
		rec["similarity_score"] = 0.0
		rec["semantic_comparison_error"] = "Empty text fields"
		return
	}

	similarity := s.analyzer.Compare(text1, text2, s.simMethod)
	rec["similarity_score"] = round(similarity, 4)
	rec["similarity_method"] = string(s.simMethod)
	rec["semantic_distance"] = round(1.0-similarity, 4)

	if s.opts.IncludeAnalysis {
		shift := s.analyzer.AnalyzeShift(text1, text2)
		rec["semantic_shift"] = round(shift.SemanticShift, 4)
		rec["word_overlap"] = round(shift.WordOverlap, 4)
		rec["length_ratio"] = round(shift.LengthRatio, 4)
		rec["shift_magnitude"] = round(shift.ShiftMagnitude, 4)
		rec["shift_direction"] = shift.ShiftDirection
	}

	rec["similarity_category"] = semantic.CategorizeSimilarity(similarity)
}

func (s *Session) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func round(v float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(v*pow) / pow
}

// numericField keeps infinite values representable in JSON output by
// degrading them to strings.
func numericField(v float64, digits int) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Sprintf("%f", v)
	}
	return round(v, digits)
}
