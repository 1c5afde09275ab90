package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricTransactionsTotal   = "ledger_transactions_total"
	MetricTransactionDuration = "ledger_transaction_duration_seconds"
	MetricSessionsOpenedTotal = "ledger_sessions_opened_total"
	MetricSessionsClosedTotal = "ledger_sessions_closed_total"
)

// Metrics contains Prometheus metrics for ledger interactions.
// All methods are safe to call on a nil receiver so instrumentation can be
// disabled by simply not wiring a Metrics instance.
type Metrics struct {
	transactionsTotal   *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	sessionsOpened      *prometheus.CounterVec
	sessionsClosed      prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		transactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTransactionsTotal,
				Help: "Total number of ledger transactions by operation, mode and outcome",
			},
			[]string{"operation", "mode", "outcome"},
		),
		transactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricTransactionDuration,
				Help:    "Ledger transaction duration in seconds",
				Buckets: []float64{0.05, 0.25, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"operation", "mode"},
		),
		sessionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSessionsOpenedTotal,
				Help: "Total number of gateway session open attempts by outcome",
			},
			[]string{"outcome"},
		),
		sessionsClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSessionsClosedTotal,
				Help: "Total number of gateway sessions released",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		m.transactionsTotal,
		m.transactionDuration,
		m.sessionsOpened,
		m.sessionsClosed,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveTransaction records one dispatch outcome and its duration.
func (m *Metrics) ObserveTransaction(operation, mode string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.transactionsTotal.WithLabelValues(operation, mode, outcome).Inc()
	m.transactionDuration.WithLabelValues(operation, mode).Observe(d.Seconds())
}

// RecordSessionOpen records one session open attempt.
func (m *Metrics) RecordSessionOpen(outcome string) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(outcome).Inc()
}

// RecordSessionClose records one session release.
func (m *Metrics) RecordSessionClose() {
	if m == nil {
		return
	}
	m.sessionsClosed.Inc()
}
