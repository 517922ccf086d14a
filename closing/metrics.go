package closing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ledger mutations and times payroll computations.
type Metrics struct {
	PaymentsRegistered *prometheus.CounterVec
	PaymentsCancelled  prometheus.Counter
	CommandsRejected   *prometheus.CounterVec
	ComputeDuration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PaymentsRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payroll",
			Name:      "payments_registered_total",
			Help:      "Ledger entries written, partitioned by payment kind.",
		}, []string{"kind"}),
		PaymentsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "payroll",
			Name:      "payments_cancelled_total",
			Help:      "Ledger entries removed by cancellation.",
		}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payroll",
			Name:      "payment_commands_rejected_total",
			Help:      "Payment commands rejected before reaching the ledger, by reason.",
		}, []string{"reason"}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "payroll",
			Name:      "event_computation_seconds",
			Help:      "Time spent computing one event's payroll.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PaymentsRegistered, m.PaymentsCancelled, m.CommandsRejected, m.ComputeDuration)
	}
	return m
}
