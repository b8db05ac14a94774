package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftguardstack/driftguard-engine/internal/baseline"
	"github.com/driftguardstack/driftguard-engine/internal/cache"
	"github.com/driftguardstack/driftguard-engine/internal/config"
	"github.com/driftguardstack/driftguard-engine/internal/engine"
	"github.com/driftguardstack/driftguard-engine/internal/models"
)

func newTestService(t *testing.T, opts engine.Options) *MonitorService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewMonitorService(logger, opts, engine.Reference{})
}

func TestOpenSessionAllocatesID(t *testing.T) {
	svc := newTestService(t, engine.Options{Fields: []string{"response_time"}})

	id, err := svc.OpenSession("", nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if id == "" {
		t.Fatalf("expected allocated stream id")
	}
	if svc.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.SessionCount())
	}

	if _, err := svc.OpenSession(id, nil); err == nil {
		t.Fatalf("expected duplicate session to be rejected")
	}
}

func TestOpenSessionRejectsBadOptions(t *testing.T) {
	svc := newTestService(t, engine.Options{})
	if _, err := svc.OpenSession("", &engine.Options{Method: "nonsense"}); err == nil {
		t.Fatalf("expected error for invalid method")
	}
}

func TestAnnotateCreatesDefaultSession(t *testing.T) {
	svc := newTestService(t, engine.Options{Fields: []string{"response_time"}})

	out, err := svc.Annotate("", models.Record{"response_time": 1.5})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if _, ok := out["anomaly_detected"]; !ok {
		t.Fatalf("record missing anomaly_detected: %v", out)
	}
	if svc.SessionCount() != 1 {
		t.Fatalf("expected implicit session, got %d", svc.SessionCount())
	}

	// Same stream reuses the session.
	if _, err := svc.Annotate(DefaultStreamID, models.Record{"response_time": 1.6}); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if svc.SessionCount() != 1 {
		t.Fatalf("expected session reuse, got %d", svc.SessionCount())
	}
}

func TestStreamsAreIsolated(t *testing.T) {
	svc := newTestService(t, engine.Options{Fields: []string{"response_time"}})

	// Warm stream a with a stable series; stream b stays cold.
	for i := 0; i < 15; i++ {
		if _, err := svc.Annotate("a", models.Record{"response_time": 10.0}); err != nil {
			t.Fatalf("annotate a: %v", err)
		}
	}
	out, err := svc.Annotate("b", models.Record{"response_time": 500.0})
	if err != nil {
		t.Fatalf("annotate b: %v", err)
	}
	if detected, _ := out["anomaly_detected"].(bool); detected {
		t.Fatalf("cold stream should not flag: %v", out)
	}
	if svc.SessionCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", svc.SessionCount())
	}
}

func TestCloseSession(t *testing.T) {
	svc := newTestService(t, engine.Options{})
	id, err := svc.OpenSession("stream-1", nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if !svc.CloseSession(id) {
		t.Fatalf("expected close to succeed")
	}
	if svc.CloseSession(id) {
		t.Fatalf("expected second close to report missing session")
	}
	if svc.SessionCount() != 0 {
		t.Fatalf("expected empty registry, got %d", svc.SessionCount())
	}
}

func TestAlertDedup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	baselines := baseline.EmptyBaselines()
	baselines.AddMetric("default", "response_time", 2.0)
	provider := cache.NewMemoryProvider()
	svc := NewMonitorService(logger, engine.Options{
		MetricField:    "response_time",
		GenerateAlerts: true,
	}, engine.Reference{Baselines: baselines}).WithAlertDedup(provider)

	// 4.0 vs baseline 2.0 is a +100% critical deviation; two identical
	// records should fan in to a single dedup slot.
	for i := 0; i < 2; i++ {
		out, err := svc.Annotate("stream-1", models.Record{"response_time": 4.0})
		if err != nil {
			t.Fatalf("annotate: %v", err)
		}
		if _, ok := out["baseline_alert_message"]; !ok {
			t.Fatalf("expected alert annotation: %v", out)
		}
	}

	if _, err := provider.Get(context.Background(), "driftguard:alert:stream-1:critical"); err != nil {
		t.Fatalf("dedup key not set: %v", err)
	}
}

func TestRecordHasError(t *testing.T) {
	if recordHasError(models.Record{"anomaly_detected": false}) {
		t.Fatalf("clean record flagged as error")
	}
	if !recordHasError(models.Record{"baseline_comparison_error": "No baseline found for metric x"}) {
		t.Fatalf("stage error not detected")
	}
}

func TestStreamOptionsMapping(t *testing.T) {
	cfg := config.StreamConfig{
		Fields:           []string{"response_time"},
		Method:           "all",
		Threshold:        2.5,
		WindowSize:       50,
		MetricField:      "response_time",
		TextField:        "response_text",
		SimilarityMethod: "jaccard",
	}
	opts := StreamOptions(cfg)
	if opts.Method != "all" || opts.Threshold != 2.5 || opts.WindowSize != 50 {
		t.Fatalf("detection options misconverted: %+v", opts)
	}
	if opts.MetricField != "response_time" || opts.TextField != "response_text" {
		t.Fatalf("field options misconverted: %+v", opts)
	}
	if opts.SimilarityMethod != "jaccard" {
		t.Fatalf("similarity method misconverted: %+v", opts)
	}

	// The converted slice must not alias the config slice.
	cfg.Fields[0] = "mutated"
	if opts.Fields[0] != "response_time" {
		t.Fatalf("fields slice aliases config")
	}
}

func TestLoadReferenceFromFiles(t *testing.T) {
	dir := t.TempDir()
	baselines := filepath.Join(dir, "baselines.csv")
	thresholds := filepath.Join(dir, "thresholds.csv")
	if err := os.WriteFile(baselines, []byte("model_id,avg_response_time\ngpt-4,2.5\n"), 0o600); err != nil {
		t.Fatalf("write baselines: %v", err)
	}
	if err := os.WriteFile(thresholds, []byte("metric_name,threshold_type,warning_threshold,critical_threshold\nresponse_time,upper,3.0,5.0\n"), 0o600); err != nil {
		t.Fatalf("write thresholds: %v", err)
	}

	refs := LoadReference(context.Background(), nil, config.ReferenceConfig{
		BaselinesFile:  baselines,
		ThresholdsFile: thresholds,
		DriftFile:      filepath.Join(dir, "missing.csv"),
	}, nil)

	if refs.Baselines == nil || refs.Baselines.Len() != 1 {
		t.Fatalf("baselines not loaded: %+v", refs.Baselines)
	}
	if refs.Thresholds == nil || refs.Thresholds.Len() != 1 {
		t.Fatalf("thresholds not loaded: %+v", refs.Thresholds)
	}
	// Missing drift file degrades to an empty baseline set.
	if refs.DriftBaselines != nil {
		t.Fatalf("expected no drift baselines, got %d", len(refs.DriftBaselines))
	}
}
