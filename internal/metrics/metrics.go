// Package metrics exposes Prometheus counters for the realtime fan-out layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdminEvents counts events delivered to admin connections, per event name.
	AdminEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_admin_events_total",
		Help: "Events delivered to admin connections.",
	}, []string{"event"})

	// Broadcasts counts room broadcasts, per room kind (chat, delivery).
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_broadcasts_total",
		Help: "Room broadcasts issued.",
	}, []string{"room_kind"})

	// StalePruned counts admin registry entries removed because their
	// connection was gone or delivery to it failed.
	StalePruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_stale_pruned_total",
		Help: "Stale admin registry entries pruned during broadcasts.",
	})
)
