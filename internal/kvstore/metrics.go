package kvstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/lifeplan/internal/schema"
)

// Transaction outcomes recorded in lifeplan_kvstore_transactions_total.
const (
	outcomeCommitted = "committed"
	outcomeAborted   = "aborted"
	outcomeFailed    = "failed"
	outcomePanicked  = "panicked"
)

// Metrics holds the store's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	transactions *prometheus.CounterVec
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeplan",
			Subsystem: "kvstore",
			Name:      "transactions_total",
			Help:      "Transactions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifeplan",
			Subsystem: "kvstore",
			Name:      "operations_total",
			Help:      "Record operations by collection and kind.",
		}, []string{"collection", "op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lifeplan",
			Subsystem: "kvstore",
			Name:      "transaction_seconds",
			Help:      "Transaction wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"mode"}),
	}
	for _, c := range []prometheus.Collector{m.transactions, m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeTx(mode Mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(mode.String(), outcome).Inc()
	m.duration.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) op(coll schema.Collection, op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(coll), op).Inc()
}
