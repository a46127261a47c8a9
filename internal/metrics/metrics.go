// Package metrics exposes hostcached's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Latency buckets in milliseconds; socket round trips are usually sub-ms.
var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100}

// Metrics wraps the daemon's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	swept      prometheus.Counter
}

// New creates and registers the collectors under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ops_total",
				Help:      "Total number of cache protocol requests",
			},
			[]string{"op", "result"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_duration_ms",
				Help:      "Cache protocol request latency in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"op"},
		),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_total",
			Help:      "Total number of expired records removed by the sweeper",
		}),
	}
	registry.MustRegister(m.opsTotal, m.opDuration, m.swept)
	return m
}

// Observe records one handled request. It satisfies cache.Recorder.
func (m *Metrics) Observe(op, result string, elapsed time.Duration) {
	m.opsTotal.WithLabelValues(op, result).Inc()
	m.opDuration.WithLabelValues(op).Observe(float64(elapsed) / float64(time.Millisecond))
}

// Swept adds n to the sweeper counter.
func (m *Metrics) Swept(n int) {
	if n > 0 {
		m.swept.Add(float64(n))
	}
}

// TrackRecords registers a gauge reporting fn() as the stored record count.
func (m *Metrics) TrackRecords(namespace string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Number of records held by the store, including expired ones not yet swept",
		},
		fn,
	))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
