package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type (
	metrics struct {
		registry *prometheus.Registry

		connections     *prometheus.CounterVec
		handshakes      *prometheus.CounterVec
		messages        prometheus.Counter
		sessionDuration prometheus.Histogram
	}
)

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpa_connections_total",
				Help: "Number of accepted connections",
			},
			[]string{"transport"},
		),
		handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpa_handshakes_total",
				Help: "Number of finished sessions by handshake result",
			},
			[]string{"result"},
		),
		messages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tpa_messages_total",
				Help: "Number of decoded and acknowledged messages",
			},
		),
		sessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tpa_session_duration_seconds",
				Help:    "Duration of served sessions",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
	}

	m.registry.MustRegister(m.connections)
	m.registry.MustRegister(m.handshakes)
	m.registry.MustRegister(m.messages)
	m.registry.MustRegister(m.sessionDuration)
	return m
}
