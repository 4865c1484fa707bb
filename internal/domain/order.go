package domain

import (
	"time"
)

// OrderStatus is the delivery lifecycle state of an order.
type OrderStatus string

const (
	OrderProcessing     OrderStatus = "Processing"
	OrderOutForDelivery OrderStatus = "Out for Delivery"
	OrderDelivered      OrderStatus = "Delivered"
	OrderCancelled      OrderStatus = "Cancelled"
)

// Location is a GPS sample reported by a delivery agent.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Order represents a customer order with optional delivery tracking state.
// LastLocation is nil until the assigned agent has reported at least one sample.
type Order struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	AgentID      string      `json:"agent_id,omitempty"`
	Status       OrderStatus `json:"status"`
	TotalCents   int64       `json:"total_cents"`
	LastLocation *Location   `json:"last_location,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CanTrack reports whether the given user may watch this order's delivery.
// Admins qualify through their role, not here.
func (o *Order) CanTrack(userID string) bool {
	return userID != "" && (o.UserID == userID || o.AgentID == userID)
}
