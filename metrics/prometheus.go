// Package metrics implements the orchestrator's metrics sink on top of
// Prometheus. All collectors are registered on an instance-owned registry
// so multiple collectors can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/caremesh/core"
)

// Options configures NewCollector.
type Options struct {
	// Namespace prefixes every metric name. Default "caremesh".
	Namespace string
	// Registry receives the collectors. Default: a fresh registry.
	Registry *prometheus.Registry
}

// Collector records request, collaborator, session and memory metrics.
// It satisfies core.MetricsRecorder.
type Collector struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	agentOperations *prometheus.CounterVec
	agentDuration   *prometheus.HistogramVec

	activeSessions prometheus.Gauge

	memoryOperations *prometheus.CounterVec
}

// NewCollector constructs a Collector and registers its metrics.
func NewCollector(optFns ...func(o *Options)) *Collector {
	opts := Options{Namespace: "caremesh"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(opts.Registry)

	return &Collector{
		registry: opts.Registry,
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "requests_total",
			Help:      "Total number of requests.",
		}, []string{"endpoint", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		agentOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "agent_operations_total",
			Help:      "Total collaborator operations.",
		}, []string{"agent_type", "operation", "status"}),
		agentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "agent_duration_seconds",
			Help:      "Collaborator operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent_type"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently processing.",
		}),
		memoryOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "memory_operations_total",
			Help:      "Memory bank operations.",
		}, []string{"operation"}),
	}
}

// RecordRequest records one HTTP request.
func (c *Collector) RecordRequest(endpoint, status string, duration time.Duration) {
	c.requestCount.WithLabelValues(endpoint, status).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAgentOperation implements core.MetricsRecorder.
func (c *Collector) RecordAgentOperation(agentType, operation, status string, duration time.Duration) {
	c.agentOperations.WithLabelValues(agentType, operation, status).Inc()
	c.agentDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// SetActiveSessions implements core.MetricsRecorder.
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// RecordMemoryOperation implements core.MetricsRecorder.
func (c *Collector) RecordMemoryOperation(operation string) {
	c.memoryOperations.WithLabelValues(operation).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Interface compliance (compile-time assertion)
var _ core.MetricsRecorder = (*Collector)(nil)
