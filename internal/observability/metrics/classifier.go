package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains Prometheus metrics for leaf disease inference.
type ClassifierMetrics struct {
	InferenceDuration prometheus.Histogram
	InferenceErrors   prometheus.Counter
	PredictionsTotal  *prometheus.CounterVec
	ModelLoadedGauge  prometheus.Gauge
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry prometheus.Registerer) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time taken by a single model forward pass.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
		InferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inference_errors_total",
			Help:      "Total number of failed inference requests.",
		}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions partitioned by predicted label.",
		}, []string{"label"}),
		ModelLoadedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "model_loaded",
			Help:      "Whether the disease model is loaded (1) or not (0).",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

// RecordInference records the duration of a forward pass, or a failure.
func (m *ClassifierMetrics) RecordInference(d time.Duration, err error) {
	if err != nil {
		m.InferenceErrors.Inc()
		return
	}
	m.InferenceDuration.Observe(d.Seconds())
}

// RecordPrediction counts a prediction for label.
func (m *ClassifierMetrics) RecordPrediction(label string) {
	m.PredictionsTotal.WithLabelValues(label).Inc()
}

// SetModelLoaded updates the model loaded gauge.
func (m *ClassifierMetrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoadedGauge.Set(1)
		return
	}
	m.ModelLoadedGauge.Set(0)
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.PredictionsTotal.Describe(ch)
	m.ModelLoadedGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.PredictionsTotal.Collect(ch)
	m.ModelLoadedGauge.Collect(ch)
}
