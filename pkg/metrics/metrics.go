// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolved records by source and outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "records_total",
			Help:      "Total number of records resolved by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// AmbiguousMatchesTotal tracks decisions that landed just inside one gate
	AmbiguousMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "ambiguous_total",
			Help:      "Total number of ambiguous match decisions by rejecting gate",
		},
		[]string{"source", "reason"},
	)

	// ResolveDuration tracks time spent resolving one record
	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of a single record resolution in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"source"},
	)

	// CandidateNameScore tracks the best candidate name score per record
	CandidateNameScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "candidate_name_score",
			Help:      "Name similarity of the best candidate for each resolved record",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 85, 90, 95, 100},
		},
	)

	// RegistrySize tracks the number of organizations in the registry
	RegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "organizations",
			Help:      "Number of organizations in the registry",
		},
	)

	// SinkErrorsTotal tracks failed deliveries to downstream sinks
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "sink_errors_total",
			Help:      "Total number of linked records a sink failed to accept",
		},
		[]string{"sink"},
	)

	// MessagesConsumedTotal tracks Kafka messages by status
	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of source record messages consumed by status",
		},
		[]string{"status"},
	)
)

// Outcome labels
const (
	OutcomeMatched = "matched"
	OutcomeCreated = "created"
	OutcomeFailed  = "failed"
)
