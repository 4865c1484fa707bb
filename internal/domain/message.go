package domain

import (
	"time"
)

// Message is a single chat message. Immutable once created.
// SenderID is empty for automated assistant replies.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id,omitempty"`
	Content        string    `json:"content"`
	IsStaff        bool      `json:"is_staff"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromAssistant reports whether the message was produced by the automated
// assistant rather than a human sender.
func (m *Message) FromAssistant() bool {
	return m.SenderID == ""
}
