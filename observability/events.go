package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "contribmine",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of ledger events published segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "contribmine",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Count of ledger events a subscriber could not keep up with.",
			}, []string{"subscriber"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordPublished increments the counter for the supplied event type.
func (m *eventMetrics) RecordPublished(kind string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(kind))
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// RecordDropped counts an event a slow subscriber missed.
func (m *eventMetrics) RecordDropped(subscriber string) {
	if m == nil {
		return
	}
	if subscriber == "" {
		subscriber = "unknown"
	}
	m.dropped.WithLabelValues(subscriber).Inc()
}
