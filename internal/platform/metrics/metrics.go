package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for ledger record operations.
type Metrics struct {
	// Writes rejected because the presented version was stale, by entity type
	VersionConflicts *prometheus.CounterVec

	// Successful writes by entity type and operation (create, update, delete)
	Writes *prometheus.CounterVec

	// Duration of service operations, including the unit of work
	OperationLatency *prometheus.HistogramVec
}

// New creates ledger metrics registered with reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VersionConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_version_conflicts_total",
			Help: "Total writes rejected with a stale version token",
		}, []string{"entity_type"}),

		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Total committed record writes by entity type and operation",
		}, []string{"entity_type", "operation"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// IncrementConflict records a lost compare-and-swap.
func (m *Metrics) IncrementConflict(entityType string) {
	if m != nil {
		m.VersionConflicts.WithLabelValues(entityType).Inc()
	}
}

// IncrementWrite records a committed write.
func (m *Metrics) IncrementWrite(entityType, operation string) {
	if m != nil {
		m.Writes.WithLabelValues(entityType, operation).Inc()
	}
}

// ObserveOperation records the duration of a service operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
