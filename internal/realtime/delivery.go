package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cartlane/cartlane/internal/domain"
	"github.com/cartlane/cartlane/internal/store"
)

// DeliveryService manages order tracking rooms: authorized joins with a
// catch-up snapshot, location relay with producer acks, and terminal status
// transitions.
type DeliveryService struct {
	repo   store.Repository
	hub    *Hub
	admins *AdminNotifier
}

// NewDeliveryService creates the delivery relay.
func NewDeliveryService(repo store.Repository, hub *Hub, admins *AdminNotifier) *DeliveryService {
	return &DeliveryService{repo: repo, hub: hub, admins: admins}
}

// Join handles a request to watch an order's delivery. Authorized if the
// connection's user is an admin, the order's owner, or its assigned agent.
// Rejections go back to the requester only; the connection stays usable.
//
// The snapshot is sent before the room join so a late joiner always sees the
// stored state before any location update that follows.
func (s *DeliveryService) Join(ctx context.Context, conn Conn, orderID string) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		s.send(ctx, conn, EventError, ErrorPayload{Message: "order not found"})
		return nil
	}

	user := conn.User()
	if !user.IsAdmin && !order.CanTrack(user.ID) {
		slog.Warn("delivery room join rejected", "order_id", orderID, "user_id", user.ID, "conn_id", conn.ID())
		s.send(ctx, conn, EventUnauthorized, ErrorPayload{Message: "not allowed to track this order"})
		return nil
	}

	s.send(ctx, conn, EventDeliveryState, DeliveryStatePayload{
		OrderID:      order.ID,
		Status:       order.Status,
		LastLocation: order.LastLocation,
	})
	s.hub.Join(conn.ID(), DeliveryRoom(orderID))

	s.admins.Broadcast(ctx, EventDeliveryStarted, DeliveryStartedPayload{
		OrderID: order.ID,
		UserID:  user.ID,
	})
	return nil
}

// RelayLocation fans a location sample out to the order room and acks the
// producer. Authorization happened at join time; here we only verify the
// sender still holds room membership — a revoked authorization is not
// re-checked per sample (documented trade-off).
func (s *DeliveryService) RelayLocation(ctx context.Context, conn Conn, in UpdateLocationPayload) error {
	room := DeliveryRoom(in.OrderID)
	if !s.hub.InRoom(conn.ID(), room) {
		s.send(ctx, conn, EventUnauthorized, ErrorPayload{Message: "join the delivery room first"})
		return nil
	}

	// Persist the latest sample so catch-up snapshots survive restarts.
	// Best-effort: the relay happens regardless.
	if err := s.repo.UpdateOrderLocation(ctx, in.OrderID, in.Location); err != nil {
		slog.Warn("failed to persist order location", "order_id", in.OrderID, "error", err)
	}

	s.hub.Broadcast(ctx, room, EventLocationUpdated, LocationUpdatedPayload{
		OrderID:  in.OrderID,
		Location: in.Location,
	})
	s.send(ctx, conn, EventLocationAck, LocationAckPayload{Received: true, Timestamp: time.Now()})
	return nil
}

// Complete marks an order as delivered. Only admins and the assigned agent may
// complete a delivery.
func (s *DeliveryService) Complete(ctx context.Context, conn Conn, orderID string) error {
	return s.setStatus(ctx, conn, orderID, domain.OrderDelivered, func(order *domain.Order, user *domain.User) bool {
		return user.IsAdmin || order.AgentID == user.ID
	})
}

// Cancel marks an order's delivery as cancelled. Admins, the assigned agent,
// and the order owner may cancel.
func (s *DeliveryService) Cancel(ctx context.Context, conn Conn, orderID string) error {
	return s.setStatus(ctx, conn, orderID, domain.OrderCancelled, func(order *domain.Order, user *domain.User) bool {
		return user.IsAdmin || order.AgentID == user.ID || order.UserID == user.ID
	})
}

func (s *DeliveryService) setStatus(ctx context.Context, conn Conn, orderID string, status domain.OrderStatus, allowed func(*domain.Order, *domain.User) bool) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		s.send(ctx, conn, EventError, ErrorPayload{Message: "order not found"})
		return nil
	}

	if !allowed(order, conn.User()) {
		s.send(ctx, conn, EventUnauthorized, ErrorPayload{Message: "not allowed to update this delivery"})
		return nil
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	s.hub.Broadcast(ctx, DeliveryRoom(orderID), EventDeliveryStatusChanged, DeliveryStatusPayload{
		OrderID: orderID,
		Status:  status,
	})
	return nil
}

func (s *DeliveryService) send(ctx context.Context, conn Conn, event string, payload any) {
	if err := conn.Send(ctx, event, payload); err != nil {
		slog.Debug("delivery event send failed", "conn_id", conn.ID(), "event", event, "error", err)
	}
}
