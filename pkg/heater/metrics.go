package heater

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vta"

// Metrics are the loop's prometheus collectors.
type Metrics struct {
	Ticks        prometheus.Counter
	Errors       *prometheus.CounterVec
	Dropped      prometheus.Counter
	Setpoint     prometheus.Gauge
	EMF          prometheus.Gauge
	TickDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heater",
			Name:      "ticks_total",
			Help:      "Completed loop ticks.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heater",
			Name:      "tick_errors_total",
			Help:      "Failed loop ticks by operation.",
		}, []string{"op"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heater",
			Name:      "dropped_events_total",
			Help:      "Events not delivered because a subscriber was full.",
		}),
		Setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heater",
			Name:      "setpoint",
			Help:      "Current heater output setpoint.",
		}),
		EMF: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heater",
			Name:      "emf_millivolts",
			Help:      "Last raw thermocouple EMF.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heater",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a loop tick.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.Errors, m.Dropped, m.Setpoint, m.EMF, m.TickDuration)
	}
	return m
}
