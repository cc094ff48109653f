package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	EventsPublishFailed *prometheus.CounterVec
	IndexRepairsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers all collectors on reg.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		StoreOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Patient status store operations by operation and outcome kind.",
		}, []string{"operation", "outcome"}),

		StoreOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Patient status store operation latency, including backend round trips.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation"}),

		EventsPublishFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_failed_total",
			Help:      "Status-change events that a sink failed to accept.",
		}, []string{"sink"}),

		IndexRepairsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "repairs_total",
			Help:      "Index membership corrections applied by the reconciler.",
		}, []string{"action"}),

		gatherer: reg,
	}
}

// ObserveStore records one store operation. Safe on a nil collector.
func (c *Collector) ObserveStore(operation, outcome string, started time.Time) {
	if c == nil {
		return
	}
	c.StoreOperationsTotal.WithLabelValues(operation, outcome).Inc()
	c.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// PublishFailed counts a failed event delivery. Safe on a nil collector.
func (c *Collector) PublishFailed(sink string) {
	if c == nil {
		return
	}
	c.EventsPublishFailed.WithLabelValues(sink).Inc()
}

// IndexRepaired counts reconciler fixes. Safe on a nil collector.
func (c *Collector) IndexRepaired(action string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.IndexRepairsTotal.WithLabelValues(action).Add(float64(n))
}

// Handler exposes the registry this collector was built on.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
