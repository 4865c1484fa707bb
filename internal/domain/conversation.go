package domain

import (
	"slices"
	"time"
)

// Conversation is a chat thread between a customer and either the automated
// shop assistant or a staff member. IsAssistant flips to false exactly once,
// when staff first replies; it never flips back.
type Conversation struct {
	ID              string    `json:"id"`
	IsAssistant     bool      `json:"is_assistant"`
	Participants    []string  `json:"participants"`
	LatestMessageID string    `json:"latest_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasParticipant reports whether the user is a participant of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}
