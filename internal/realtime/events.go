package realtime

import (
	"encoding/json"
	"time"

	"github.com/cartlane/cartlane/internal/domain"
)

// Socket event names. Client-facing names are part of the wire protocol and
// mirrored by the storefront frontend; do not rename casually.
const (
	// client -> server
	EventJoinChatRoom     = "join chat room"
	EventNewMessage       = "new message"
	EventTyping           = "typing"
	EventStopTyping       = "stop typing"
	EventJoinDeliveryRoom = "joinDeliveryRoom"
	EventUpdateLocation   = "updateLocation"
	EventCompleteDelivery = "completeDelivery"
	EventCancelDelivery   = "cancelDelivery"

	// server -> clients
	EventMessageReceived       = "message received"
	EventAssistantError        = "assistant error"
	EventDeliveryState         = "deliveryStateUpdate"
	EventLocationUpdated       = "locationUpdated"
	EventLocationAck           = "locationAck"
	EventDeliveryStatusChanged = "deliveryStatusChanged"
	EventUnauthorized          = "unauthorized"
	EventError                 = "error"

	// server -> admin connections only
	EventNewOrderNotification = "newOrderNotification"
	EventDeliveryStarted      = "deliveryStarted"
	EventNewChatNotification  = "newChatNotification"
)

// Envelope is the wire frame for every socket message, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessagePayload is the client payload for "new message".
type NewMessagePayload struct {
	Content string `json:"content"`
	ChatID  string `json:"chatId"`
	TempID  string `json:"tempId,omitempty"`
}

// SenderInfo is the resolved sender attached to a delivered message.
type SenderInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// MessageReceivedPayload delivers a persisted message to a chat room.
// Sender is nil for assistant replies. TempID echoes the client's optimistic id.
type MessageReceivedPayload struct {
	Message *domain.Message `json:"message"`
	Sender  *SenderInfo     `json:"sender,omitempty"`
	TempID  string          `json:"tempId,omitempty"`
}

// TypingPayload relays typing indicators. UserID is filled by the server.
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId,omitempty"`
}

// JoinDeliveryPayload is the client payload for "joinDeliveryRoom".
// UserID is advisory; authorization always uses the connection's session user.
type JoinDeliveryPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId,omitempty"`
}

// DeliveryStatePayload is the catch-up snapshot sent to a joining connection.
type DeliveryStatePayload struct {
	OrderID      string             `json:"orderId"`
	Status       domain.OrderStatus `json:"status"`
	LastLocation *domain.Location   `json:"lastLocation"`
}

// UpdateLocationPayload is the client payload for "updateLocation".
type UpdateLocationPayload struct {
	OrderID  string          `json:"orderId"`
	Location domain.Location `json:"location"`
}

// LocationUpdatedPayload fans a location sample out to an order room.
type LocationUpdatedPayload struct {
	OrderID  string          `json:"orderId"`
	Location domain.Location `json:"location"`
}

// LocationAckPayload acknowledges a location sample to its producer only.
type LocationAckPayload struct {
	Received  bool      `json:"received"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryStatusPayload announces a delivery status transition to an order room.
type DeliveryStatusPayload struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
}

// ErrorPayload carries error and unauthorized events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// AdminOrderPayload is the admin alert for a newly placed order.
type AdminOrderPayload struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// AdminChatPayload is the admin alert for a newly started conversation.
type AdminChatPayload struct {
	ChatID  string `json:"chatId"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// DeliveryStartedPayload is the admin alert for a delivery room being opened.
type DeliveryStartedPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

// ChatRoom returns the room key for a conversation.
func ChatRoom(conversationID string) string {
	return "chat:" + conversationID
}

// DeliveryRoom returns the room key for an order's delivery tracking.
func DeliveryRoom(orderID string) string {
	return "delivery:" + orderID
}
