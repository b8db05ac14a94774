package api

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/driftguardstack/driftguard-engine/internal/engine"
	"github.com/driftguardstack/driftguard-engine/internal/services"
)

func newTestHandlers(t *testing.T, opts engine.Options) (*Handlers, *services.MonitorService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := services.NewMonitorService(logger, opts, engine.Reference{})
	return NewHandlers(logger, svc), svc
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandlers(t, engine.Options{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestAnnotateSingleRecord(t *testing.T) {
	h, _ := newTestHandlers(t, engine.Options{Fields: []string{"response_time"}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/annotate", strings.NewReader(`{"response_time": 1.5}`))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := out["anomaly_detected"]; !ok {
		t.Fatalf("annotated record missing anomaly_detected: %v", out)
	}
	if out["response_time"] != 1.5 {
		t.Fatalf("input field lost: %v", out)
	}
}

func TestAnnotateRejectsBadJSON(t *testing.T) {
	h, _ := newTestHandlers(t, engine.Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/annotate", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message, got %v", body)
	}
}

func TestAnnotateStreamNDJSON(t *testing.T) {
	h, svc := newTestHandlers(t, engine.Options{Fields: []string{"response_time"}})

	input := `{"response_time": 1.0}
{"response_time": 1.1}
garbage line
{"response_time": 1.2}
`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/annotate/stream", strings.NewReader(input))
	req.Header.Set(StreamHeader, "stream-a")
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type %s", ct)
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		var out map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &out); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, out)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 output lines, got %d", len(lines))
	}
	if _, ok := lines[0]["anomaly_detected"]; !ok {
		t.Fatalf("first record unannotated: %v", lines[0])
	}
	if _, ok := lines[2]["error"]; !ok {
		t.Fatalf("malformed line should yield an error object: %v", lines[2])
	}
	if _, ok := lines[3]["anomaly_detected"]; !ok {
		t.Fatalf("stream should continue past malformed line: %v", lines[3])
	}

	// All records shared one session via the stream header.
	if svc.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.SessionCount())
	}
}

func TestSessionLifecycle(t *testing.T) {
	h, svc := newTestHandlers(t, engine.Options{})

	body := `{"stream_id": "stream-1", "options": {"fields": ["latency"], "method": "iqr", "threshold": 1.5}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created["stream_id"] != "stream-1" {
		t.Fatalf("unexpected stream id: %v", created)
	}
	if svc.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.SessionCount())
	}

	// Duplicate open conflicts.
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// Close, then close again.
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/stream-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/stream-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestOpenSessionRejectsInvalidOptions(t *testing.T) {
	h, _ := newTestHandlers(t, engine.Options{})
	body := `{"options": {"method": "nonsense"}}`
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOptionsPayloadApply(t *testing.T) {
	defaults := engine.DefaultOptions()
	off := false
	p := &optionsPayload{
		Fields:          []string{"response_time"},
		Method:          "all",
		IncludeAnalysis: &off,
		MetricField:     "response_time",
	}
	opts := p.apply(defaults)
	if opts.Method != "all" || len(opts.Fields) != 1 || opts.MetricField != "response_time" {
		t.Fatalf("overrides not applied: %+v", opts)
	}
	if opts.IncludeAnalysis {
		t.Fatalf("explicit false should override default true")
	}
	// Untouched fields keep their defaults.
	if opts.ComparisonType != defaults.ComparisonType || opts.Threshold != defaults.Threshold {
		t.Fatalf("defaults lost: %+v", opts)
	}
}
