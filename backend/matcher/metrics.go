package matcher

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	registrations prometheus.Counter
	pairings      prometheus.Counter
	timeouts      prometheus.Counter
	waiting       prometheus.Gauge
	sessions      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_registrations_total",
			Help: "Completed identity registrations.",
		}),
		pairings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_pairings_total",
			Help: "Sessions formed from two waiting connections.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_waiting_timeouts_total",
			Help: "Waiting entries expired before a partner was found.",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_waiting_connections",
			Help: "Connections currently parked in the waiting pool.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_open_sessions",
			Help: "Currently open chat sessions.",
		}),
	}

	reg.MustRegister(
		m.registrations,
		m.pairings,
		m.timeouts,
		m.waiting,
		m.sessions,
	)
	return m
}

func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) RecordPairing() {
	if m == nil {
		return
	}
	m.pairings.Inc()
}

func (m *Metrics) RecordTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

func (m *Metrics) SetWaiting(n int) {
	if m == nil {
		return
	}
	m.waiting.Set(float64(n))
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
