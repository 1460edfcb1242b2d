package rootaccess

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for the toggle. All methods handle a
// nil receiver, so a nil *Metrics disables collection.
type Metrics struct {
	// Calls counts RPC calls by operation and result.
	// Labels: op=[setEnabled, getEnabled], result=[ok, denied]
	Calls *prometheus.CounterVec

	// Transitions counts committed state changes by target state.
	// Labels: to=[enabled, disabled]
	Transitions *prometheus.CounterVec

	// PersistFailures counts state file writes that did not succeed.
	PersistFailures prometheus.Counter

	// SideEffectFailures counts failed property writes or daemon restarts.
	// Labels: action=[set_property, restart]
	SideEffectFailures *prometheus.CounterVec

	// Enabled reports the current in-memory toggle as 0 or 1.
	Enabled prometheus.Gauge
}

// NewMetrics creates the toggle metrics and registers them with reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rootd_calls_total",
				Help: "Total toggle RPC calls by operation and result",
			},
			[]string{"op", "result"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rootd_transitions_total",
				Help: "Total committed root access transitions by target state",
			},
			[]string{"to"},
		),
		PersistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rootd_persist_failures_total",
				Help: "Total failed writes of the persisted toggle",
			},
		),
		SideEffectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rootd_side_effect_failures_total",
				Help: "Total failed disable side effects by action",
			},
			[]string{"action"},
		),
		Enabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rootd_enabled",
				Help: "Whether root access is currently enabled (1) or not (0)",
			},
		),
	}
	for _, c := range []prometheus.Collector{m.Calls, m.Transitions, m.PersistFailures, m.SideEffectFailures, m.Enabled} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordCall(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "denied"
	}
	m.Calls.WithLabelValues(op, result).Inc()
}

func (m *Metrics) recordTransition(t Transition) {
	if m == nil || !t.Changed() {
		return
	}
	m.Transitions.WithLabelValues(stateLabel(t.New)).Inc()
}

func (m *Metrics) recordPersistFailure() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) recordSideEffectFailure(action string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) setEnabled(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.Enabled.Set(1)
	} else {
		m.Enabled.Set(0)
	}
}

func stateLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
