package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "logima"

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	presigns        *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	outcomeAttempts prometheus.Histogram
	events          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		presigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_presigns_total",
			Help:      "Upload authorizations issued, by result.",
		}, []string{"result"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_confirmations_total",
			Help:      "Upload confirmations, by result.",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcome_generations_total",
			Help:      "Project outcome generations, by result (generated or degraded).",
		}, []string{"result"}),
		outcomeAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outcome_generation_attempts",
			Help:      "Model calls made per outcome generation.",
			Buckets:   []float64{1, 2, 3, 4},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Artifact events handed to the queue, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.presigns,
		m.confirmations,
		m.outcomes,
		m.outcomeAttempts,
		m.events,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request latency. Unmatched routes are grouped under "unmatched"
// to keep label cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Observe* methods are no-ops on a nil *Metrics.
func (m *Metrics) ObservePresign(result string) {
	if m == nil {
		return
	}
	m.presigns.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveConfirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveOutcome(degraded bool, attempts int) {
	if m == nil {
		return
	}
	result := "generated"
	if degraded {
		result = "degraded"
	}
	m.outcomes.WithLabelValues(result).Inc()
	m.outcomeAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveEvent(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}
