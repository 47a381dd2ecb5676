// Package metrics provides Prometheus instrumentation for the chat client
// and the reference authority: counters for event throughput and typing
// transitions, gauges for the presence and typing sets.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsReceived counts inbound channel events, labeled by event name.
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_received_total",
		Help: "Total number of inbound channel events",
	}, []string{"event"})

	// EventsSent counts outbound channel events, labeled by event name.
	EventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_sent_total",
		Help: "Total number of outbound channel events",
	}, []string{"event"})

	// TypingTransitions counts typing-signal state changes, labeled by the
	// resulting state: "active" or "idle".
	TypingTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_typing_transitions_total",
		Help: "Total number of local typing-signal transitions",
	}, []string{"state"})

	// OnlineUsers tracks the size of the last presence snapshot.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_users",
		Help: "Number of users in the current presence snapshot",
	})

	// TypingUsers tracks the number of peers currently flagged as typing.
	TypingUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_typing_users",
		Help: "Number of peers currently typing",
	})

	// Connections tracks active connections on the reference authority.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections",
		Help: "Current number of active authority connections",
	})
)

func init() {
	prometheus.MustRegister(
		EventsReceived,
		EventsSent,
		TypingTransitions,
		OnlineUsers,
		TypingUsers,
		Connections,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
