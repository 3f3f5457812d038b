// Package observability wires the Prometheus registry and its collectors.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Classifier *metrics.ClassifierMetrics
	Upstream   *metrics.UpstreamMetrics
	Lookup     *metrics.LookupMetrics
	HTTP       *metrics.HTTPMetrics
}

// NewMetrics creates a private registry with process and Go runtime collectors
// plus every application collector.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	classifierMetrics, err := metrics.NewClassifierMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier metrics: %w", err)
	}
	upstreamMetrics, err := metrics.NewUpstreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream metrics: %w", err)
	}
	lookupMetrics, err := metrics.NewLookupMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Classifier: classifierMetrics,
		Upstream:   upstreamMetrics,
		Lookup:     lookupMetrics,
		HTTP:       httpMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
