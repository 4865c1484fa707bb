package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/cartlane/cartlane/internal/domain"
)

type fakeResponder struct {
	reply  string
	err    error
	called int
}

func (r *fakeResponder) Reply(_ context.Context, _ string) (string, error) {
	r.called++
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

func TestChatService_CustomerMessageGetsAssistantReply(t *testing.T) {
	repo := newTestRepo(t)
	hub := NewHub()
	assistant := &fakeResponder{reply: "Your order ships tomorrow."}
	svc := NewChatService(repo, hub, assistant)

	customer := seedUser(t, repo, "cust1", false)
	seedConversation(t, repo, "conv1", true, "cust1")

	conn := newFakeConn("c1", customer)
	hub.Add(conn)
	hub.Join("c1", ChatRoom("conv1"))

	err := svc.HandleIncoming(context.Background(), customer, NewMessagePayload{
		ChatID:  "conv1",
		Content: "Where is my order?",
		TempID:  "tmp-1",
	})
	if err != nil {
		t.Fatalf("HandleIncoming failed: %v", err)
	}

	if assistant.called != 1 {
		t.Errorf("Expected assistant called once, got %d", assistant.called)
	}

	// Exactly two persisted messages: the human message and the reply.
	messages, err := repo.ListMessages(context.Background(), "conv1", 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 persisted messages, got %d", len(messages))
	}
	if messages[0].SenderID != "cust1" {
		t.Errorf("Expected first message from cust1, got %q", messages[0].SenderID)
	}
	if !messages[1].FromAssistant() {
		t.Errorf("Expected second message from assistant, got sender %q", messages[1].SenderID)
	}

	// Conversation stays automated.
	conv, err := repo.GetConversation(context.Background(), "conv1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !conv.IsAssistant {
		t.Error("Expected conversation to remain assistant-run")
	}

	// The human message reaches the room before the assistant reply.
	events := conn.sent()
	if len(events) != 2 || events[0].Event != EventMessageReceived || events[1].Event != EventMessageReceived {
		t.Fatalf("Expected two %q events, got %v", EventMessageReceived, conn.eventNames())
	}
	first, ok := events[0].Payload.(MessageReceivedPayload)
	if !ok {
		t.Fatalf("Unexpected payload type %T", events[0].Payload)
	}
	if first.TempID != "tmp-1" {
		t.Errorf("Expected tempId echo, got %q", first.TempID)
	}
	if first.Sender == nil || first.Sender.ID != "cust1" {
		t.Errorf("Expected resolved sender cust1, got %+v", first.Sender)
	}
	second, ok := events[1].Payload.(MessageReceivedPayload)
	if !ok {
		t.Fatalf("Unexpected payload type %T", events[1].Payload)
	}
	if second.Sender != nil {
		t.Errorf("Expected nil sender on assistant reply, got %+v", second.Sender)
	}
}

func TestChatService_StaffMessageFlipsConversation(t *testing.T) {
	repo := newTestRepo(t)
	hub := NewHub()
	assistant := &fakeResponder{reply: "should not be used"}
	svc := NewChatService(repo, hub, assistant)

	staff := seedUser(t, repo, "staff1", true)
	seedUser(t, repo, "cust1", false)
	seedConversation(t, repo, "conv1", true, "cust1")

	err := svc.HandleIncoming(context.Background(), staff, NewMessagePayload{
		ChatID:  "conv1",
		Content: "Hi, taking over from the assistant.",
	})
	if err != nil {
		t.Fatalf("HandleIncoming failed: %v", err)
	}

	if assistant.called != 0 {
		t.Errorf("Assistant must not be invoked for staff messages, called %d times", assistant.called)
	}

	conv, err := repo.GetConversation(context.Background(), "conv1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv.IsAssistant {
		t.Error("Expected conversation flipped to human-staffed")
	}
	if !conv.HasParticipant("staff1") {
		t.Errorf("Expected staff1 added to participants, got %v", conv.Participants)
	}

	messages, err := repo.ListMessages(context.Background(), "conv1", 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected exactly 1 persisted message, got %d", len(messages))
	}
	if !messages[0].IsStaff {
		t.Error("Expected message flagged as staff")
	}
}

func TestChatService_TakeoverIsOneWayAndIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	hub := NewHub()
	svc := NewChatService(repo, hub, &fakeResponder{reply: "hello"})

	staff := seedUser(t, repo, "staff1", true)
	customer := seedUser(t, repo, "cust1", false)
	seedConversation(t, repo, "conv1", true, "cust1")

	for i := 0; i < 2; i++ {
		if err := svc.HandleIncoming(context.Background(), staff, NewMessagePayload{ChatID: "conv1", Content: "msg"}); err != nil {
			t.Fatalf("Staff message %d failed: %v", i, err)
		}
	}

	// A customer message after takeover produces no assistant reply.
	if err := svc.HandleIncoming(context.Background(), customer, NewMessagePayload{ChatID: "conv1", Content: "thanks"}); err != nil {
		t.Fatalf("Customer message failed: %v", err)
	}

	conv, err := repo.GetConversation(context.Background(), "conv1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv.IsAssistant {
		t.Error("Conversation must not revert to assistant-run")
	}

	count := 0
	for _, p := range conv.Participants {
		if p == "staff1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected staff1 exactly once in participants, got %v", conv.Participants)
	}

	messages, err := repo.ListMessages(context.Background(), "conv1", 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Errorf("Expected 3 persisted messages (no assistant replies), got %d", len(messages))
	}
}

func TestChatService_AssistantFailureIsIsolated(t *testing.T) {
	repo := newTestRepo(t)
	hub := NewHub()
	svc := NewChatService(repo, hub, &fakeResponder{err: errors.New("provider down")})

	customer := seedUser(t, repo, "cust1", false)
	seedConversation(t, repo, "conv1", true, "cust1")

	conn := newFakeConn("c1", customer)
	hub.Add(conn)
	hub.Join("c1", ChatRoom("conv1"))

	err := svc.HandleIncoming(context.Background(), customer, NewMessagePayload{ChatID: "conv1", Content: "hello?"})
	if err != nil {
		t.Fatalf("Assistant failure must not fail the original message: %v", err)
	}

	names := conn.eventNames()
	if len(names) != 2 || names[0] != EventMessageReceived || names[1] != EventAssistantError {
		t.Errorf("Expected [message received, assistant error], got %v", names)
	}

	messages, err := repo.ListMessages(context.Background(), "conv1", 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("Expected only the human message persisted, got %d", len(messages))
	}
}

func TestChatService_UnknownConversation(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewChatService(repo, NewHub(), nil)

	customer := seedUser(t, repo, "cust1", false)

	err := svc.HandleIncoming(context.Background(), customer, NewMessagePayload{ChatID: "missing", Content: "hi"})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound, got %v", err)
	}
}

func TestChatService_NilResponderSkipsReply(t *testing.T) {
	repo := newTestRepo(t)
	hub := NewHub()
	svc := NewChatService(repo, hub, nil)

	customer := seedUser(t, repo, "cust1", false)
	seedConversation(t, repo, "conv1", true, "cust1")

	if err := svc.HandleIncoming(context.Background(), customer, NewMessagePayload{ChatID: "conv1", Content: "hi"}); err != nil {
		t.Fatalf("HandleIncoming failed: %v", err)
	}

	messages, err := repo.ListMessages(context.Background(), "conv1", 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("Expected 1 message with assistant disabled, got %d", len(messages))
	}
}

func TestChatService_RelayTypingExcludesTypist(t *testing.T) {
	repo := newTestRepo(t)
	hub := NewHub()
	svc := NewChatService(repo, hub, nil)

	typist := newFakeConn("c1", &domain.User{ID: "cust1"})
	peer := newFakeConn("c2", &domain.User{ID: "staff1"})
	hub.Add(typist)
	hub.Add(peer)
	hub.Join("c1", ChatRoom("conv1"))
	hub.Join("c2", ChatRoom("conv1"))

	svc.RelayTyping(context.Background(), typist, EventTyping, "conv1")

	if got := len(typist.sent()); got != 0 {
		t.Errorf("Typist received %d events, want 0", got)
	}
	events := peer.sent()
	if len(events) != 1 || events[0].Event != EventTyping {
		t.Fatalf("Expected one typing event for peer, got %v", peer.eventNames())
	}
	payload, ok := events[0].Payload.(TypingPayload)
	if !ok || payload.UserID != "cust1" {
		t.Errorf("Expected typing payload with userId cust1, got %+v", events[0].Payload)
	}
}
