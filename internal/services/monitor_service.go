// Package services hosts the monitoring session registry sitting between the
// transport layer and the engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftguardstack/driftguard-engine/internal/cache"
	"github.com/driftguardstack/driftguard-engine/internal/engine"
	"github.com/driftguardstack/driftguard-engine/internal/metrics"
	"github.com/driftguardstack/driftguard-engine/internal/models"
	"github.com/driftguardstack/driftguard-engine/internal/utils"
)

// DefaultStreamID names the session used by callers that never declare one.
const DefaultStreamID = "default"

// ErrSessionExists reports an OpenSession collision.
var ErrSessionExists = errors.New("session already exists")

// alertDedupTTL suppresses repeated baseline alerts per stream and severity.
// One session monitors one metric, so the key is effectively per metric.
const alertDedupTTL = time.Minute

// stageErrorFields are the per-stage annotations that mark a record as having
// hit a fault or a data problem during annotation.
var stageErrorFields = []string{
	"anomaly_detection_error",
	"baseline_comparison_error",
	"drift_error",
	"llm_metrics_error",
	"semantic_comparison_error",
}

// MonitorService owns the live monitoring sessions. Each stream ID maps to
// one isolated engine session; records within a stream are serialized so
// window state stays consistent.
type MonitorService struct {
	logger    *slog.Logger
	defaults  engine.Options
	refs      engine.Reference
	latencies *utils.LatencyTracker
	alerts    cache.Provider

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *engine.Session
}

// NewMonitorService constructs the registry. defaults apply to sessions
// created implicitly by record traffic; refs is shared by every session.
func NewMonitorService(logger *slog.Logger, defaults engine.Options, refs engine.Reference) *MonitorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitorService{
		logger:    logger,
		defaults:  defaults,
		refs:      refs,
		latencies: utils.NewLatencyTracker(1024),
		sessions:  make(map[string]*sessionEntry),
	}
}

// WithAlertDedup enables cache-backed suppression of repeated baseline
// alerts. Deduplicated alerts surface once per TTL in the service log.
func (s *MonitorService) WithAlertDedup(provider cache.Provider) *MonitorService {
	s.alerts = provider
	return s
}

// Defaults returns a copy of the default session options.
func (s *MonitorService) Defaults() engine.Options {
	opts := s.defaults
	opts.Fields = append([]string(nil), s.defaults.Fields...)
	return opts
}

// OpenSession registers a session explicitly, optionally overriding the
// default options. An empty id allocates a fresh one.
func (s *MonitorService) OpenSession(id string, opts *engine.Options) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	options := s.defaults
	if opts != nil {
		options = *opts
	}
	session, err := engine.NewSession(s.logger, options, s.refs)
	if err != nil {
		return "", utils.NewAppError("services.OpenSession", "invalid session options", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		return "", fmt.Errorf("session %s: %w", id, ErrSessionExists)
	}
	s.sessions[id] = &sessionEntry{session: session}
	metrics.SessionOpened()
	s.logger.Info("session opened", slog.String("stream_id", id))
	return id, nil
}

// CloseSession retires a session and its window state.
func (s *MonitorService) CloseSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; !exists {
		return false
	}
	delete(s.sessions, id)
	metrics.SessionClosed()
	s.logger.Info("session closed", slog.String("stream_id", id))
	return true
}

// SessionCount reports the number of live sessions.
func (s *MonitorService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Annotate pushes one record through the stream's session, creating the
// session with default options on first use. The record always comes back
// annotated; only session construction can fail.
func (s *MonitorService) Annotate(streamID string, rec models.Record) (models.Record, error) {
	if streamID == "" {
		streamID = DefaultStreamID
	}
	entry, err := s.entryFor(streamID)
	if err != nil {
		return rec, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	start := time.Now()
	out := entry.session.Annotate(rec)
	duration := time.Since(start)

	outcome := metrics.OutcomeSuccess
	if recordHasError(out) {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveRecord(duration, outcome)
	observeAnnotations(out)
	s.logAlert(streamID, out)

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("annotation latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
	return out, nil
}

// LatencyP95 returns the current p95 annotation latency.
func (s *MonitorService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *MonitorService) entryFor(streamID string) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[streamID]; ok {
		return entry, nil
	}

	session, err := engine.NewSession(s.logger, s.defaults, s.refs)
	if err != nil {
		return nil, err
	}
	entry := &sessionEntry{session: session}
	s.sessions[streamID] = entry
	metrics.SessionOpened()
	s.logger.Debug("session created", slog.String("stream_id", streamID))
	return entry, nil
}

// logAlert surfaces a baseline alert in the service log, at most once per
// stream/severity pair within the dedup TTL.
func (s *MonitorService) logAlert(streamID string, rec models.Record) {
	if s.alerts == nil {
		return
	}
	msg, _ := rec["baseline_alert_message"].(string)
	if msg == "" {
		return
	}
	severity, _ := rec["baseline_alert_severity"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	key := "driftguard:alert:" + streamID + ":" + severity
	fresh, err := s.alerts.SetNX(ctx, key, []byte(msg), alertDedupTTL)
	if err != nil || !fresh {
		return
	}
	s.logger.Warn("baseline alert",
		slog.String("stream_id", streamID),
		slog.String("severity", severity),
		slog.String("message", msg))
}

func recordHasError(rec models.Record) bool {
	for _, field := range stageErrorFields {
		if _, ok := rec[field]; ok {
			return true
		}
	}
	return false
}

// observeAnnotations translates record annotations into counters. Anomaly
// type names carry the detector kind as their last underscore segment.
func observeAnnotations(rec models.Record) {
	if types, ok := rec["anomaly_types"].(string); ok && types != "" {
		for _, name := range strings.Split(types, ",") {
			if i := strings.LastIndex(name, "_"); i >= 0 && i+1 < len(name) {
				metrics.ObserveAnomaly(name[i+1:])
			}
		}
	}
	if detected, ok := rec["drift_detected"].(bool); ok && detected {
		metrics.ObserveDrift()
	}
}
