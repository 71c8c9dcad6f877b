package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attestation client.
type Metrics struct {
	// Operation outcomes by operation and failure kind ("ok" on success)
	Outcomes *prometheus.CounterVec

	// End-to-end operation latency, including wallet approval and confirmation
	Duration *prometheus.HistogramVec

	// Wallets observed below the low-balance threshold
	LowBalance prometheus.Counter
}

// New registers the attestation metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmatrace_attestation_operations_total",
			Help: "Attestation operations by operation and outcome",
		}, []string{"operation", "outcome"}), // operation: "sign", "verify", "balance"

		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pharmatrace_attestation_duration_seconds",
			Help:    "Duration of attestation operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		LowBalance: f.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_wallet_low_balance_total",
			Help: "Balance checks that returned less than 0.01 SOL",
		}),
	}
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation, outcome string, d time.Duration) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, outcome).Inc()
		m.Duration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementLowBalance records a low-balance observation.
func (m *Metrics) IncrementLowBalance() {
	if m != nil {
		m.LowBalance.Inc()
	}
}
