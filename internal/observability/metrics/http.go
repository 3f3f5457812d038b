package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the HTTP API.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP handler metrics.
func NewHTTPMetrics(registry prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "code"}), // route is the registered path, not the raw URL
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// RecordRequest records one served request.
func (m *HTTPMetrics) RecordRequest(route, method string, code int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RequestDuration.Collect(ch)
}
