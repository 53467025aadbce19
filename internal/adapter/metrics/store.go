package metrics

import "github.com/prometheus/client_golang/prometheus"

// Circuit breaker state gauge values.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// StoreMetrics holds Prometheus metrics for the persisted store and the
// circuit breakers guarding external dependencies.
type StoreMetrics struct {
	OpsTotal            *prometheus.CounterVec
	OpDuration          *prometheus.HistogramVec
	BreakerState        *prometheus.GaugeVec
	BreakerStateChanges *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total store commands, by command and status.",
		}, []string{"operation", "status"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store commands in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open), by component.",
		}, []string{"component"}),
		BreakerStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Total circuit breaker state changes, by component and new state.",
		}, []string{"component", "state"}),
	}

	reg.MustRegister(m.OpsTotal, m.OpDuration, m.BreakerState, m.BreakerStateChanges)
	return m
}

// RecordBreaker records a circuit breaker transition for component.
func (m *StoreMetrics) RecordBreaker(component, state string, value float64) {
	m.BreakerStateChanges.WithLabelValues(component, state).Inc()
	m.BreakerState.WithLabelValues(component).Set(value)
}
