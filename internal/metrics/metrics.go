package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the realtime path. Persistence failures are only observable
// here and in the logs; they are never surfaced on the websocket.
var (
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bike_train_broadcasts_total",
		Help: "Room broadcasts fanned out to connected clients.",
	})

	DroppedSendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bike_train_dropped_sends_total",
		Help: "Messages dropped because a client send buffer was full.",
	})

	PersistenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bike_train_persistence_failures_total",
		Help: "Fire-and-forget location persistence attempts that failed.",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bike_train_active_rooms",
		Help: "Rooms with at least one connected participant.",
	})
)
