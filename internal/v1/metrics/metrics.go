package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the chat server.
//
// Naming convention: namespace_subsystem_name
// - namespace: chathub (application-level grouping)
// - subsystem: websocket, room, chat (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, members)
// - Counter: Cumulative events (actions processed, evictions)
// - Histogram: Latency distributions (action handling time)

var (
	// ActiveConnections tracks the current number of live WebSocket connections
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chathub",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of rooms
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chathub",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of chat rooms",
	})

	// RoomMembers tracks the member count of each room
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chathub",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// ActionsProcessed counts handled client actions by outcome
	ActionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chathub",
		Subsystem: "chat",
		Name:      "actions_total",
		Help:      "Total client actions processed",
	}, []string{"action", "status"})

	// SlowClientEvictions counts clients disconnected because their outbound
	// queue was full at fan-out time
	SlowClientEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chathub",
		Subsystem: "chat",
		Name:      "slow_client_evictions_total",
		Help:      "Total clients evicted for a full outbound queue",
	})

	// ActionDuration tracks the time spent handling client actions
	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chathub",
		Subsystem: "chat",
		Name:      "action_duration_seconds",
		Help:      "Time spent handling client actions",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"action"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
