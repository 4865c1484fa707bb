package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cartlane/cartlane/internal/domain"
	"github.com/cartlane/cartlane/internal/responder"
	"github.com/cartlane/cartlane/internal/store"
	"github.com/google/uuid"
)

// ErrConversationNotFound is returned when a message targets a conversation
// that was never started.
var ErrConversationNotFound = errors.New("conversation not found")

// ChatService persists incoming chat messages and fans them out to the
// conversation's room, invoking the automated assistant where the conversation
// is still unstaffed.
type ChatService struct {
	repo      store.Repository
	hub       *Hub
	responder responder.Responder // nil disables assistant replies
}

// NewChatService creates the chat broadcast service. responder may be nil.
func NewChatService(repo store.Repository, hub *Hub, r responder.Responder) *ChatService {
	return &ChatService{repo: repo, hub: hub, responder: r}
}

// HandleIncoming processes one inbound chat message.
//
// A staff message into an assistant conversation flips it to human-staffed
// (one-way, idempotent) and adds the sender to its participants. The persisted
// message is broadcast to the conversation room; only then, if the conversation
// is still assistant-run and the sender is not staff, the assistant is asked
// for a reply. Assistant failures are reported to the room as a distinct event
// and never fail the original message.
func (s *ChatService) HandleIncoming(ctx context.Context, sender *domain.User, in NewMessagePayload) error {
	conv, err := s.repo.GetConversation(ctx, in.ChatID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	if sender.IsAdmin && conv.IsAssistant {
		if err := s.repo.MarkConversationStaffed(ctx, conv.ID, sender.ID); err != nil {
			return fmt.Errorf("staff takeover: %w", err)
		}
		conv.IsAssistant = false
	}

	msg := &domain.Message{
		ID:             newMessageID(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        in.Content,
		IsStaff:        sender.IsAdmin,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	room := ChatRoom(conv.ID)
	s.hub.Broadcast(ctx, room, EventMessageReceived, MessageReceivedPayload{
		Message: msg,
		Sender:  &SenderInfo{ID: sender.ID, Name: sender.Name, IsAdmin: sender.IsAdmin},
		TempID:  in.TempID,
	})

	// The human message is on the wire before the assistant request is issued.
	if conv.IsAssistant && !sender.IsAdmin && s.responder != nil {
		s.assistantReply(ctx, conv.ID, in.Content)
	}

	return nil
}

func (s *ChatService) assistantReply(ctx context.Context, conversationID, prompt string) {
	room := ChatRoom(conversationID)

	text, err := s.responder.Reply(ctx, prompt)
	if err != nil {
		slog.Warn("assistant reply failed", "conversation_id", conversationID, "error", err)
		s.hub.Broadcast(ctx, room, EventAssistantError, ErrorPayload{
			Message: "The shop assistant is unavailable right now.",
		})
		return
	}

	reply := &domain.Message{
		ID:             newMessageID(),
		ConversationID: conversationID,
		Content:        text,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.CreateMessage(ctx, reply); err != nil {
		slog.Error("failed to persist assistant reply", "conversation_id", conversationID, "error", err)
		s.hub.Broadcast(ctx, room, EventAssistantError, ErrorPayload{
			Message: "The shop assistant is unavailable right now.",
		})
		return
	}

	s.hub.Broadcast(ctx, room, EventMessageReceived, MessageReceivedPayload{Message: reply})
}

// Message timestamps are stored at second precision, so listing order falls
// back to the id; v7 ids keep that tiebreak chronological.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RelayTyping forwards a typing indicator to the conversation room, excluding
// the typist. No persistence.
func (s *ChatService) RelayTyping(ctx context.Context, sender Conn, event, chatID string) {
	s.hub.BroadcastExcept(ctx, ChatRoom(chatID), sender.ID(), event, TypingPayload{
		ChatID: chatID,
		UserID: sender.User().ID,
	})
}
