package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for write failures.
const (
	StageBegin    = "begin"
	StageComplete = "complete"
	StageAttach   = "attach"
)

// Metrics holds Prometheus metrics for the audit log writer and its fan-out.
// All methods are safe on a nil receiver so audit wiring stays optional.
type Metrics struct {
	HeadersBegun        prometheus.Counter
	HeadersCompleted    prometheus.Counter
	ChangesRecorded     prometheus.Counter
	WriteFailures       *prometheus.CounterVec
	FanoutPublished     prometheus.Counter
	FanoutDropped       *prometheus.CounterVec
	CircuitBreakerState prometheus.Gauge
}

// New creates audit metrics registered with reg. A nil reg leaves the
// collectors unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HeadersBegun: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_audit_headers_begun_total",
			Help: "Total number of audit headers opened for incoming requests",
		}),
		HeadersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_audit_headers_completed_total",
			Help: "Total number of audit headers completed with a response outcome",
		}),
		ChangesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_audit_field_changes_total",
			Help: "Total number of field changes persisted to the audit log",
		}),
		WriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_audit_write_failures_total",
			Help: "Total number of swallowed audit write failures by stage",
		}, []string{"stage"}),
		FanoutPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_audit_fanout_published_total",
			Help: "Total number of change sets published to the broker",
		}),
		FanoutDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_audit_fanout_dropped_total",
			Help: "Total number of change sets dropped before reaching the broker",
		}, []string{"reason"}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_audit_fanout_circuit_breaker_state",
			Help: "Current fan-out circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

// IncHeadersBegun increments the begun counter.
func (m *Metrics) IncHeadersBegun() {
	if m == nil {
		return
	}
	m.HeadersBegun.Inc()
}

// IncHeadersCompleted increments the completed counter.
func (m *Metrics) IncHeadersCompleted() {
	if m == nil {
		return
	}
	m.HeadersCompleted.Inc()
}

// AddChangesRecorded adds n persisted field changes.
func (m *Metrics) AddChangesRecorded(n int) {
	if m == nil {
		return
	}
	m.ChangesRecorded.Add(float64(n))
}

// IncWriteFailure increments the failure counter for a stage.
func (m *Metrics) IncWriteFailure(stage string) {
	if m == nil {
		return
	}
	m.WriteFailures.WithLabelValues(stage).Inc()
}

// IncFanoutPublished increments the published counter.
func (m *Metrics) IncFanoutPublished() {
	if m == nil {
		return
	}
	m.FanoutPublished.Inc()
}

// IncFanoutDropped increments the dropped counter for a reason.
func (m *Metrics) IncFanoutDropped(reason string) {
	if m == nil {
		return
	}
	m.FanoutDropped.WithLabelValues(reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
