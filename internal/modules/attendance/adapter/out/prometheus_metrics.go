package out

import (
	"errors"
	"fmt"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"

	"github.com/prometheus/client_golang/prometheus"
)

var trackerStates = []domain.TrackerState{domain.StateUnknown, domain.StateOutOfRange, domain.StateInRange}

// PrometheusMetrics records tracker telemetry. State is exported as one gauge
// per state with exactly one of them set to 1.
type PrometheusMetrics struct {
	ticks       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	rebuilds    prometheus.Counter
	state       *prometheus.GaugeVec
	distance    prometheus.Gauge
	minutes     prometheus.Gauge
}

var _ attendanceout.Metrics = (*PrometheusMetrics)(nil)

func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "ticks_total",
			Help:      "Tracker ticks by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "transitions_total",
			Help:      "Appended attendance events by status.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "failures_total",
			Help:      "Recoverable tracker failures by kind.",
		}, []string{"kind"}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "record_rebuilds_total",
			Help:      "Daily records rebuilt from the log after a failed update.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "state",
			Help:      "Current tracker state (1 for the active state).",
		}, []string{"state"}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "office_distance_meters",
			Help:      "Last measured distance to the office.",
		}),
		minutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geoattend",
			Subsystem: "tracker",
			Name:      "effective_minutes",
			Help:      "Effective time in office today, including the open session.",
		}),
	}
	for _, c := range []prometheus.Collector{m.ticks, m.transitions, m.failures, m.rebuilds, m.state, m.distance, m.minutes} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, fmt.Errorf("tracker metrics already registered: %w", err)
			}
			return nil, fmt.Errorf("register tracker metrics: %w", err)
		}
	}
	m.SetState(domain.StateUnknown)
	return m, nil
}

func (m *PrometheusMetrics) ObserveTick(outcome string) {
	m.ticks.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) ObserveTransition(status domain.Status) {
	m.transitions.WithLabelValues(string(status)).Inc()
}

func (m *PrometheusMetrics) ObserveFailure(kind string) {
	m.failures.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) ObserveRebuild() {
	m.rebuilds.Inc()
}

func (m *PrometheusMetrics) SetState(state domain.TrackerState) {
	for _, s := range trackerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
}

func (m *PrometheusMetrics) SetDistance(meters float64) {
	m.distance.Set(meters)
}

func (m *PrometheusMetrics) SetEffectiveMinutes(minutes int) {
	m.minutes.Set(float64(minutes))
}
