package serving

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "leadscore"

// serverMetrics are registered on a registry owned by the server, so several
// servers can live in one process.
type serverMetrics struct {
	registry *prometheus.Registry

	requestCount         *prometheus.CounterVec
	predictionCount      *prometheus.CounterVec
	validationFailures   prometheus.Counter
	predictionDuration   prometheus.Histogram
	predictionErrorCount prometheus.Counter
	modelInfo            *prometheus.GaugeVec
}

func newServerMetrics(version string) *serverMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &serverMetrics{
		registry: reg,
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Counter of the number of HTTP requests.",
		}, []string{"route", "status"}),
		predictionCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "model",
			Name:      "predictions_total",
			Help:      "Counter of the number of predictions per label.",
		}, []string{"label"}),
		validationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "validation_failures_total",
			Help:      "Counter of the number of rejected prediction requests.",
		}),
		predictionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "model",
			Name:      "prediction_duration_seconds",
			Help:      "Histogram of the model prediction latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		predictionErrorCount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "model",
			Name:      "prediction_failure_total",
			Help:      "Counter of the number of failed predictions.",
		}),
		modelInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "model",
			Name:      "info",
			Help:      "Version info of the served model.",
		}, []string{"model_version"}),
	}
	m.modelInfo.WithLabelValues(version).Set(1)
	return m
}
