package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LookupMetrics tracks forecast crisis events and place details cache use.
type LookupMetrics struct {
	CrisisEventsTotal *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
}

// NewLookupMetrics creates and registers lookup metrics.
func NewLookupMetrics(registry prometheus.Registerer) (*LookupMetrics, error) {
	m := &LookupMetrics{
		CrisisEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crisis_events_total",
			Help:      "Total number of forecast crisis events partitioned by condition.",
		}, []string{"condition"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "place_details_cache_total",
			Help:      "Place details cache lookups partitioned by result (hit, miss).",
		}, []string{"result"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register lookup metrics: %w", err)
	}
	return m, nil
}

// RecordCrisisEvent counts one flagged forecast entry for condition.
func (m *LookupMetrics) RecordCrisisEvent(condition string) {
	m.CrisisEventsTotal.WithLabelValues(condition).Inc()
}

// RecordCacheLookup counts a place details cache hit or miss.
func (m *LookupMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *LookupMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CrisisEventsTotal.Describe(ch)
	m.CacheLookups.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LookupMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CrisisEventsTotal.Collect(ch)
	m.CacheLookups.Collect(ch)
}
