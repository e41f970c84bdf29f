// Package metrics exposes Prometheus instrumentation for the scan pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration covers detect, extract, lookup and the whole capture
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfscanner_stage_duration_seconds",
			Help:    "Duration of scan pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	SpinesDetected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfscanner_spines_detected",
			Help:    "Number of spines detected per frame",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 30, 50},
		},
	)

	Captures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfscanner_captures_total",
			Help: "Total number of capture requests by outcome",
		},
		[]string{"outcome"}, // "ok", "model_unavailable", "error"
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfscanner_extractions_total",
			Help: "Total number of spine extractions by outcome",
		},
		[]string{"outcome"}, // "title", "duplicate", "no_text", "unparsed", "failed"
	)

	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfscanner_lookups_total",
			Help: "Total number of catalog lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "cached", "error", "rejected", "missing_key"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfscanner_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// ObserveStage records how long a pipeline stage took
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCapture counts a finished capture and its spine count
func RecordCapture(outcome string, spines int) {
	Captures.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		SpinesDetected.Observe(float64(spines))
	}
}

// RecordExtraction counts one spine extraction
func RecordExtraction(outcome string) {
	Extractions.WithLabelValues(outcome).Inc()
}

// RecordLookup counts one catalog lookup
func RecordLookup(result string) {
	Lookups.WithLabelValues(result).Inc()
}

// SetBreakerState publishes a breaker state as 0, 1 or 2
func SetBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
