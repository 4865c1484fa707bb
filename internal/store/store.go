// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/cartlane/cartlane/internal/domain"
)

// Repository defines the interface for persisting shop data.
// Lookups return (nil, nil) when the record does not exist.
type Repository interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// GetOrder retrieves an order by ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// CreateOrder inserts a new order.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// UpdateOrderStatus sets the delivery status of an order.
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	// UpdateOrderLocation stores the most recent delivery location of an order.
	UpdateOrderLocation(ctx context.Context, orderID string, loc domain.Location) error

	// GetConversation retrieves a conversation with its participant set.
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// CreateConversation inserts a new conversation and its participants.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// FindAssistantConversation returns the user's open assistant conversation,
	// if any.
	FindAssistantConversation(ctx context.Context, userID string) (*domain.Conversation, error)

	// MarkConversationStaffed flips an assistant conversation to human-staffed
	// and adds the staff user to its participants. Idempotent: calling it on an
	// already-staffed conversation only ensures participant membership.
	MarkConversationStaffed(ctx context.Context, conversationID, staffUserID string) error

	// CreateMessage inserts a message and updates the conversation's
	// latest-message reference in one transaction.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns up to limit messages of a conversation, oldest first.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
