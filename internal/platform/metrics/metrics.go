package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's transport-level Prometheus metrics.
type Metrics struct {
	HTTPLatency        *prometheus.HistogramVec
	IdempotentReplays  prometheus.Counter
	IdempotentInFlight prometheus.Counter
}

// New creates and registers the gateway metrics with reg (default registerer
// when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pharmatrace_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		IdempotentReplays: f.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_idempotent_replays_total",
			Help: "Sign requests answered from a stored idempotent response",
		}),
		IdempotentInFlight: f.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_idempotent_in_flight_total",
			Help: "Sign requests rejected because the same key was still in flight",
		}),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementIdempotentReplay() {
	if m != nil {
		m.IdempotentReplays.Inc()
	}
}

func (m *Metrics) IncrementIdempotentInFlight() {
	if m != nil {
		m.IdempotentInFlight.Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
