package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels records annotated without stage faults.
	OutcomeSuccess = "success"
	// OutcomeError labels records that picked up a stage error annotation.
	OutcomeError = "error"
)

var (
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Name:      "records_total",
			Help:      "Total number of records annotated, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	recordDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "driftguard",
			Name:      "record_seconds",
			Help:      "Per-record annotation latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Name:      "anomalies_total",
			Help:      "Total anomalies flagged, partitioned by detector kind.",
		},
		[]string{"detector"},
	)

	driftDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Name:      "drift_detected_total",
			Help:      "Total records flagged as semantic drift.",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "driftguard",
			Name:      "active_sessions",
			Help:      "Number of live monitoring sessions.",
		},
	)
)

// Register attaches driftguard collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		recordsTotal,
		recordDurationSeconds,
		anomaliesTotal,
		driftDetectedTotal,
		activeSessions,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRecord records one annotation's duration and outcome label.
func ObserveRecord(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	recordsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	recordDurationSeconds.Observe(duration.Seconds())
}

// ObserveAnomaly counts a flagged anomaly for a detector kind.
func ObserveAnomaly(detector string) {
	anomaliesTotal.WithLabelValues(detector).Inc()
}

// ObserveDrift counts a drift detection.
func ObserveDrift() {
	driftDetectedTotal.Inc()
}

// SessionOpened tracks a new session.
func SessionOpened() { activeSessions.Inc() }

// SessionClosed tracks a retired session.
func SessionClosed() { activeSessions.Dec() }
