// Package api exposes the record annotation surface over HTTP and hosts the
// gRPC health probe listener.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/driftguardstack/driftguard-engine/internal/engine"
	"github.com/driftguardstack/driftguard-engine/internal/models"
	"github.com/driftguardstack/driftguard-engine/internal/services"
)

// StreamHeader carries the stream affinity for record traffic. Records with
// the same header value share one session and its rolling windows.
const StreamHeader = "X-Driftguard-Stream"

// maxRecordBytes bounds a single NDJSON line.
const maxRecordBytes = 1 << 20

// Handlers bundles the HTTP endpoints around the session registry.
type Handlers struct {
	logger  *slog.Logger
	service *services.MonitorService
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(logger *slog.Logger, service *services.MonitorService) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, service: service}
}

// Router returns the configured request multiplexer.
func (h *Handlers) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /api/v1/annotate", h.handleAnnotate)
	mux.HandleFunc("POST /api/v1/annotate/stream", h.handleAnnotateStream)
	mux.HandleFunc("POST /api/v1/sessions", h.handleOpenSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.handleCloseSession)
	return mux
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.service.SessionCount(),
	})
}

// handleAnnotate annotates a single JSON record.
func (h *Handlers) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var rec models.Record
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBytes))
	if err := decoder.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse record: %v", err))
		return
	}

	out, err := h.service.Annotate(r.Header.Get(StreamHeader), rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAnnotateStream reads NDJSON records from the body and writes the
// annotated records back line by line. A malformed line produces an error
// object in its place; the stream keeps going.
func (h *Handlers) handleAnnotateStream(w http.ResponseWriter, r *http.Request) {
	streamID := r.Header.Get(StreamHeader)

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec models.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			_ = encoder.Encode(map[string]any{"error": fmt.Sprintf("parse record: %v", err)})
			continue
		}

		out, err := h.service.Annotate(streamID, rec)
		if err != nil {
			_ = encoder.Encode(map[string]any{"error": err.Error()})
			continue
		}
		if err := encoder.Encode(out); err != nil {
			h.logger.Warn("stream write failed", slog.Any("error", err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := scanner.Err(); err != nil {
		h.logger.Warn("stream read failed", slog.Any("error", err))
	}
}

type sessionRequest struct {
	StreamID string          `json:"stream_id"`
	Options  *optionsPayload `json:"options"`
}

// optionsPayload mirrors engine.Options for the wire. Pointer booleans
// distinguish "absent" from "false" so defaults survive partial payloads.
type optionsPayload struct {
	Fields           []string `json:"fields"`
	Method           string   `json:"method"`
	Threshold        float64  `json:"threshold"`
	WindowSize       int      `json:"window_size"`
	IncludeAnalysis  *bool    `json:"include_analysis"`
	MetricField      string   `json:"metric_field"`
	BaselineField    string   `json:"baseline_field"`
	ModelField       string   `json:"model_field"`
	ComparisonType   string   `json:"comparison_type"`
	GenerateAlerts   *bool    `json:"generate_alerts"`
	TextField        string   `json:"text_field"`
	DriftThreshold   float64  `json:"drift_threshold"`
	DriftWindow      int      `json:"drift_window"`
	ResponseField    string   `json:"response_field"`
	PromptField      string   `json:"prompt_field"`
	TimeField        string   `json:"time_field"`
	TokenField       string   `json:"token_field"`
	ConfidenceField  string   `json:"confidence_field"`
	IncludeTrends    *bool    `json:"include_trends"`
	SimilarityMethod string   `json:"similarity_method"`
}

func (p *optionsPayload) apply(opts engine.Options) engine.Options {
	if p == nil {
		return opts
	}
	if p.Fields != nil {
		opts.Fields = append([]string(nil), p.Fields...)
	}
	if p.Method != "" {
		opts.Method = p.Method
	}
	if p.Threshold > 0 {
		opts.Threshold = p.Threshold
	}
	if p.WindowSize > 0 {
		opts.WindowSize = p.WindowSize
	}
	if p.IncludeAnalysis != nil {
		opts.IncludeAnalysis = *p.IncludeAnalysis
	}
	if p.MetricField != "" {
		opts.MetricField = p.MetricField
	}
	if p.BaselineField != "" {
		opts.BaselineField = p.BaselineField
	}
	if p.ModelField != "" {
		opts.ModelField = p.ModelField
	}
	if p.ComparisonType != "" {
		opts.ComparisonType = p.ComparisonType
	}
	if p.GenerateAlerts != nil {
		opts.GenerateAlerts = *p.GenerateAlerts
	}
	if p.TextField != "" {
		opts.TextField = p.TextField
	}
	if p.DriftThreshold > 0 {
		opts.DriftThreshold = p.DriftThreshold
	}
	if p.DriftWindow > 0 {
		opts.DriftWindow = p.DriftWindow
	}
	if p.ResponseField != "" {
		opts.ResponseField = p.ResponseField
	}
	if p.PromptField != "" {
		opts.PromptField = p.PromptField
	}
	if p.TimeField != "" {
		opts.TimeField = p.TimeField
	}
	if p.TokenField != "" {
		opts.TokenField = p.TokenField
	}
	if p.ConfidenceField != "" {
		opts.ConfidenceField = p.ConfidenceField
	}
	if p.IncludeTrends != nil {
		opts.IncludeTrends = *p.IncludeTrends
	}
	if p.SimilarityMethod != "" {
		opts.SimilarityMethod = p.SimilarityMethod
	}
	return opts
}

// handleOpenSession registers a session, optionally with option overrides on
// top of the configured defaults.
func (h *Handlers) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse request: %v", err))
		return
	}

	var opts *engine.Options
	if req.Options != nil {
		applied := req.Options.apply(h.service.Defaults())
		opts = &applied
	}
	id, err := h.service.OpenSession(req.StreamID, opts)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrSessionExists) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stream_id": id})
}

func (h *Handlers) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.service.CloseSession(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stream_id": id, "closed": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
