package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus instruments. Built against an
// explicit registry and injected through the container, never registered at
// package level.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesDispatched *prometheus.CounterVec
	DispatchFailures   prometheus.Counter
	EventsPublished    *prometheus.CounterVec
	WsConnections      prometheus.Gauge
	LedgerWrites       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		MessagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetzy_messages_dispatched_total",
			Help: "Message copies persisted, by target kind.",
		}, []string{"kind"}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetzy_dispatch_failures_total",
			Help: "Per-recipient dispatch failures.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetzy_events_published_total",
			Help: "Realtime events handed to the notifier, by event name.",
		}, []string{"event"}),
		WsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meetzy_ws_connections",
			Help: "Currently connected websocket clients.",
		}),
		LedgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetzy_ledger_writes_total",
			Help: "Action ledger writes, by action type.",
		}, []string{"type"}),
	}

	registry.MustRegister(
		m.MessagesDispatched,
		m.DispatchFailures,
		m.EventsPublished,
		m.WsConnections,
		m.LedgerWrites,
	)
	return m
}
