package realtime

import (
	"context"
	"log/slog"

	"github.com/cartlane/cartlane/internal/metrics"
	"github.com/cartlane/cartlane/internal/notify"
)

// AdminNotifier fans events out to every registered admin connection.
// Delivery is fire-and-forget, at-most-once per registered id, with no
// acknowledgment, retry, or cross-recipient ordering.
type AdminNotifier struct {
	hub       *Hub
	registry  *AdminRegistry
	publisher notify.Publisher // optional broker mirror, may be nil
}

// NewAdminNotifier creates a notifier. publisher may be nil.
func NewAdminNotifier(hub *Hub, registry *AdminRegistry, publisher notify.Publisher) *AdminNotifier {
	return &AdminNotifier{
		hub:       hub,
		registry:  registry,
		publisher: publisher,
	}
}

// Registry returns the underlying admin registry (used by the handshake gate).
func (n *AdminNotifier) Registry() *AdminRegistry {
	return n.registry
}

// Broadcast delivers the event to every currently registered admin connection.
//
// An id whose connection the hub no longer knows, or whose send fails, is
// removed from the registry within this call. Staleness is discovered lazily
// at broadcast time and delivery is never retried.
func (n *AdminNotifier) Broadcast(ctx context.Context, event string, payload any) {
	for _, id := range n.registry.List() {
		conn := n.hub.Get(id)
		if conn == nil {
			n.registry.Unregister(id)
			metrics.StalePruned.Inc()
			continue
		}

		if err := conn.Send(ctx, event, payload); err != nil {
			// Delivery failure is proof of staleness.
			slog.Debug("admin delivery failed, pruning", "conn_id", id, "event", event, "error", err)
			n.registry.Unregister(id)
			metrics.StalePruned.Inc()
			continue
		}

		metrics.AdminEvents.WithLabelValues(event).Inc()
	}

	if n.publisher != nil {
		if err := n.publisher.Publish(ctx, event, payload); err != nil {
			slog.Warn("admin event broker mirror failed", "event", event, "error", err)
		}
	}
}
