// Package observability exposes Prometheus metrics for the transcript
// lifecycle: fetch attempts and outcomes, parse failures, and descriptor
// matching quality.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the transcript engine's Prometheus collectors. Create one
// per process and register it on the process registry.
type Metrics struct {
	FetchAttempts        prometheus.Counter
	FetchFailures        *prometheus.CounterVec
	FetchCompleted       prometheus.Counter
	ParseFailures        prometheus.Counter
	DescriptorsResolved  *prometheus.CounterVec
	DescriptorUnresolved prometheus.Counter
	MatcherDisagreements prometheus.Counter
	SweepDuration        prometheus.Histogram
}

// NewMetrics creates the transcript metric set under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "fetch_attempts_total",
			Help:      "Total transcript fetch attempts started",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "fetch_failures_total",
			Help:      "Failed transcript fetch attempts by stage",
		}, []string{"stage"}),
		FetchCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "fetch_completed_total",
			Help:      "Transcript fetches that committed content",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "parse_failures_total",
			Help:      "Caption payloads that failed to parse after download",
		}),
		DescriptorsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "descriptors_resolved_total",
			Help:      "Provider descriptors resolved to a meeting, by matching key",
		}, []string{"matched_by"}),
		DescriptorUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "descriptors_unresolved_total",
			Help:      "Provider descriptors that matched no meeting",
		}),
		MatcherDisagreements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "matcher_key_disagreements_total",
			Help:      "Descriptor resolutions where lower priority keys pointed at a different meeting",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of fetch sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register registers all collectors on the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.FetchAttempts,
		m.FetchFailures,
		m.FetchCompleted,
		m.ParseFailures,
		m.DescriptorsResolved,
		m.DescriptorUnresolved,
		m.MatcherDisagreements,
		m.SweepDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
