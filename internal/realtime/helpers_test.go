package realtime

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cartlane/cartlane/internal/domain"
	"github.com/cartlane/cartlane/internal/store"
)

type sentEvent struct {
	Event   string
	Payload any
}

// fakeConn records everything sent to it. failSend simulates a connection that
// has silently dropped.
type fakeConn struct {
	id       string
	user     *domain.User
	failSend bool

	mu     sync.Mutex
	events []sentEvent
}

func newFakeConn(id string, user *domain.User) *fakeConn {
	return &fakeConn{id: id, user: user}
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) User() *domain.User {
	return c.user
}

func (c *fakeConn) Send(_ context.Context, event string, payload any) error {
	if c.failSend {
		return errors.New("connection gone")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sentEvent{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) sent() []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) eventNames() []string {
	var names []string
	for _, e := range c.sent() {
		names = append(names, e.Event)
	}
	return names
}

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close test store: %v", err)
		}
	})
	return repo
}

func seedUser(t *testing.T, repo store.Repository, id string, isAdmin bool) *domain.User {
	t.Helper()
	now := time.Now()
	user := &domain.User{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		IsAdmin:   isAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.UpsertUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user %s: %v", id, err)
	}
	return user
}

func seedOrder(t *testing.T, repo store.Repository, id, ownerID, agentID string, status domain.OrderStatus) *domain.Order {
	t.Helper()
	now := time.Now()
	order := &domain.Order{
		ID:        id,
		UserID:    ownerID,
		AgentID:   agentID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("Failed to seed order %s: %v", id, err)
	}
	return order
}

func seedConversation(t *testing.T, repo store.Repository, id string, isAssistant bool, participants ...string) *domain.Conversation {
	t.Helper()
	now := time.Now()
	conv := &domain.Conversation{
		ID:           id,
		IsAssistant:  isAssistant,
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("Failed to seed conversation %s: %v", id, err)
	}
	return conv
}
