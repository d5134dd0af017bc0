// Package metrics exposes Prometheus instrumentation for the reasoning
// engine. Every Collector owns its registry, so several can coexist in one
// process (tests, embedded engines).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the engine.
type Collector struct {
	registry *prometheus.Registry

	StageDuration   *prometheus.HistogramVec
	StageFailures   *prometheus.CounterVec
	Queries         *prometheus.CounterVec
	GraphNodes      prometheus.Histogram
	SessionsActive  prometheus.Gauge
	SessionsEvicted *prometheus.CounterVec
	Feedback        *prometheus.CounterVec
}

// New creates a Collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"stage"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of pipeline stage failures",
			},
			[]string{"stage"},
		),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of processed queries",
			},
			[]string{"status"},
		),
		GraphNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of nodes in the graph after a successful run",
				Buckets:   prometheus.LinearBuckets(10, 20, 10),
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of live sessions",
			},
		),
		SessionsEvicted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_evicted_total",
				Help:      "Total number of sessions removed from the registry",
			},
			[]string{"reason"},
		),
		Feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_total",
				Help:      "Total number of feedback items by target and outcome",
			},
			[]string{"target", "status"},
		),
	}

	registry.MustRegister(
		c.StageDuration,
		c.StageFailures,
		c.Queries,
		c.GraphNodes,
		c.SessionsActive,
		c.SessionsEvicted,
		c.Feedback,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StageFinished implements pipeline.Observer.
func (c *Collector) StageFinished(name string, elapsed time.Duration, err error) {
	c.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		c.StageFailures.WithLabelValues(name).Inc()
	}
}

// QueryFinished records the outcome of a query.
func (c *Collector) QueryFinished(err error, nodes int) {
	if err != nil {
		c.Queries.WithLabelValues("error").Inc()
		return
	}
	c.Queries.WithLabelValues("ok").Inc()
	c.GraphNodes.Observe(float64(nodes))
}

// SessionOpened records a new live session.
func (c *Collector) SessionOpened() { c.SessionsActive.Inc() }

// SessionEvicted records a session leaving the registry.
func (c *Collector) SessionEvicted(reason string) {
	c.SessionsActive.Dec()
	c.SessionsEvicted.WithLabelValues(reason).Inc()
}

// FeedbackApplied records one feedback item. target is "node" or "edge".
func (c *Collector) FeedbackApplied(target string, ok bool) {
	status := "applied"
	if !ok {
		status = "rejected"
	}
	c.Feedback.WithLabelValues(target, status).Inc()
}
