package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	throttleDecisions *prometheus.CounterVec
	processRSS        prometheus.Gauge
	processCPU        prometheus.Gauge
	rateLimitBuckets  prometheus.Gauge
}

// NewMetrics registers the API collectors plus the Go runtime ones.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acquisitions",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "acquisitions",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		throttleDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acquisitions",
			Subsystem: "throttle",
			Name:      "decisions_total",
			Help:      "Throttle gate outcomes by caller role",
		}, []string{"role", "outcome"}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "acquisitions",
			Subsystem: "process",
			Name:      "resident_memory_bytes",
			Help:      "Resident set size sampled by the scheduler",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "acquisitions",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage of the API process sampled by the scheduler",
		}),
		rateLimitBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "acquisitions",
			Subsystem: "throttle",
			Name:      "memory_buckets",
			Help:      "Live in-memory rate limit buckets after the last sweep",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requestTotal,
		m.requestDuration,
		m.throttleDecisions,
		m.processRSS,
		m.processCPU,
		m.rateLimitBuckets,
	)
	return m
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records count and latency per chi route pattern. Unmatched
// paths share one label to keep cardinality bounded.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		m.requestTotal.With(labels).Inc()
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// ObserveThrottle counts one gate decision.
func (m *Metrics) ObserveThrottle(role, outcome string) {
	m.throttleDecisions.With(prometheus.Labels{"role": role, "outcome": outcome}).Inc()
}

// SetProcessStats publishes the latest process sample.
func (m *Metrics) SetProcessStats(s ProcessStats) {
	m.processRSS.Set(float64(s.RSSBytes))
	m.processCPU.Set(s.CPUPercent)
}

// SetRateLimitBuckets publishes the in-memory counter size.
func (m *Metrics) SetRateLimitBuckets(n int) {
	m.rateLimitBuckets.Set(float64(n))
}
