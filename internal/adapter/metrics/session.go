package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics holds Prometheus metrics for the session core.
type SessionMetrics struct {
	RegistrarCalls     *prometheus.CounterVec
	RegistrarRetries   *prometheus.CounterVec
	Events             *prometheus.CounterVec
	State              prometheus.Gauge
	UpdateInterval     prometheus.Gauge
	OnscreenSeconds    prometheus.Gauge
	StaleCompletions   prometheus.Counter
	TagsTruncatedTotal prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		RegistrarCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registrar",
			Name:      "calls_total",
			Help:      "Total registrar API calls, by operation and status.",
		}, []string{"operation", "status"}),
		RegistrarRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registrar",
			Name:      "retries_total",
			Help:      "Total registrar retries scheduled, by operation.",
		}, []string{"operation"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "reports_total",
			Help:      "Total event reports, by kind and status (sent/failed/dropped).",
		}, []string{"kind", "status"}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (0=empty .. 5=deactivated).",
		}),
		UpdateInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "update_interval_seconds",
			Help:      "Server-controlled periodic update interval.",
		}),
		OnscreenSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "onscreen_seconds",
			Help:      "Cumulative foreground time.",
		}),
		StaleCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_completions_total",
			Help:      "Network completions discarded because the session changed meanwhile.",
		}),
		TagsTruncatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "tags_truncated_total",
			Help:      "Tag updates that exceeded the key limit.",
		}),
	}

	reg.MustRegister(m.RegistrarCalls, m.RegistrarRetries, m.Events, m.State,
		m.UpdateInterval, m.OnscreenSeconds, m.StaleCompletions, m.TagsTruncatedTotal)
	return m
}
