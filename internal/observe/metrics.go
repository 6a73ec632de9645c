// Package observe exports call metrics to Prometheus.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voice-softphone/internal/calls"
)

// CallMetrics is a calls.Observer that turns transitions into metrics.
type CallMetrics struct {
	transitions *prometheus.CounterVec
	active      prometheus.Gauge
	ended       *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewCallMetrics registers the call metrics on reg.
func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	f := promauto.With(reg)
	return &CallMetrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "softphone",
			Subsystem: "call",
			Name:      "transitions_total",
			Help:      "Call session phase transitions.",
		}, []string{"from", "to"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "softphone",
			Subsystem: "call",
			Name:      "active",
			Help:      "1 while a call is connected.",
		}),
		ended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "softphone",
			Subsystem: "call",
			Name:      "ended_total",
			Help:      "Finished calls by cause.",
		}, []string{"direction", "cause"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "softphone",
			Subsystem: "call",
			Name:      "duration_seconds",
			Help:      "Connected time of finished calls.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
	}
}

func (m *CallMetrics) OnTransition(t calls.Transition) {
	m.transitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	switch {
	case t.To == calls.PhaseActive:
		m.active.Inc()
	case t.To == calls.PhaseEnded:
		if t.From == calls.PhaseActive {
			m.active.Dec()
		}
		m.ended.WithLabelValues(string(t.Direction), t.Cause).Inc()
		if t.Connected {
			m.duration.Observe(t.Duration.Seconds())
		}
	}
}
