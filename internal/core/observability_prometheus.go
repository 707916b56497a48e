package core

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder implements MetricsRecorder with a counter and a latency
// histogram per service operation. Collectors are registered on first use.
type PrometheusMetricsRecorder struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

var _ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)

// NewPrometheusMetricsRecorder builds a recorder registering on reg, or on
// prometheus.DefaultRegisterer when reg is nil. The namespace defaults to "elwinator".
func NewPrometheusMetricsRecorder(reg prometheus.Registerer, namespace string) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "elwinator"
	}
	return &PrometheusMetricsRecorder{reg: reg, namespace: namespace}
}

func (p *PrometheusMetricsRecorder) ensureRegistered() {
	p.once.Do(func() {
		p.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Total service operations by operation and status (success, error).",
		}, []string{"operation", "status"})
		p.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Latency of service operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}, []string{"operation"})

		p.reg.MustRegister(p.operations)
		p.reg.MustRegister(p.durations)
	})
}

// Observe implements MetricsRecorder.
func (p *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	p.ensureRegistered()
	status := string(AuditStatusError)
	if success {
		status = string(AuditStatusSuccess)
	}
	p.operations.WithLabelValues(operation, status).Inc()
	p.durations.WithLabelValues(operation).Observe(duration.Seconds())
}
