package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks calls to third-party services.
type UpstreamMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers upstream call metrics.
func NewUpstreamMetrics(registry prometheus.Registerer) (*UpstreamMetrics, error) {
	m := &UpstreamMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream requests partitioned by service and status.",
		}, []string{"service", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register upstream metrics: %w", err)
	}
	return m, nil
}

// RecordRequest records one upstream call. status is a free-form outcome such
// as StatusSuccess, StatusError or an HTTP status code.
func (m *UpstreamMetrics) RecordRequest(service, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(service, status).Inc()
	m.RequestDuration.WithLabelValues(service).Observe(d.Seconds())
}

// HTTPClientHook returns an after-response hook for the shared HTTP client that
// records every outbound request under the service derived from its host.
func (m *UpstreamMetrics) HTTPClientHook() func(*http.Request, *http.Response, error, time.Duration) {
	return func(req *http.Request, resp *http.Response, err error, d time.Duration) {
		status := StatusError
		if err == nil && resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.RecordRequest(ServiceForHost(req.URL.Hostname()), status, d)
	}
}

// ServiceForHost maps an upstream host name to its service label.
func ServiceForHost(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.HasPrefix(host, "texttospeech."):
		return ServiceTTS
	case strings.HasPrefix(host, "speech."):
		return ServiceSpeech
	case strings.HasPrefix(host, "generativelanguage."):
		return ServiceGemini
	case strings.HasPrefix(host, "maps.") || strings.HasPrefix(host, "places."):
		return ServicePlaces
	case strings.Contains(host, "openweathermap"):
		return ServiceOpenWeather
	default:
		return ServiceOther
	}
}

// Describe implements the prometheus.Collector interface.
func (m *UpstreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *UpstreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RequestDuration.Collect(ch)
}
