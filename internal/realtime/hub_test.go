package realtime

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/cartlane/cartlane/internal/domain"
)

func TestHub_JoinAndBroadcast(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a", &domain.User{ID: "userA"})
	b := newFakeConn("b", &domain.User{ID: "userB"})
	c := newFakeConn("c", &domain.User{ID: "userC"})

	hub.Add(a)
	hub.Add(b)
	hub.Add(c)
	hub.Join("a", "chat:1")
	hub.Join("b", "chat:1")

	hub.Broadcast(context.Background(), "chat:1", "ping", nil)

	if got := len(a.sent()); got != 1 {
		t.Errorf("Expected 1 event for a, got %d", got)
	}
	if got := len(b.sent()); got != 1 {
		t.Errorf("Expected 1 event for b, got %d", got)
	}
	if got := len(c.sent()); got != 0 {
		t.Errorf("Expected no events for c, got %d", got)
	}
}

func TestHub_BroadcastExceptSkipsProducer(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a", &domain.User{ID: "userA"})
	b := newFakeConn("b", &domain.User{ID: "userB"})

	hub.Add(a)
	hub.Add(b)
	hub.Join("a", "chat:1")
	hub.Join("b", "chat:1")

	hub.BroadcastExcept(context.Background(), "chat:1", "a", "typing", nil)

	if got := len(a.sent()); got != 0 {
		t.Errorf("Expected producer to be skipped, got %d events", got)
	}
	if got := len(b.sent()); got != 1 {
		t.Errorf("Expected 1 event for b, got %d", got)
	}
}

func TestHub_BroadcastEmptyRoomIsNoop(t *testing.T) {
	hub := NewHub()
	// Must not panic.
	hub.Broadcast(context.Background(), "chat:nobody", "ping", nil)
}

func TestHub_JoinUnknownConnIgnored(t *testing.T) {
	hub := NewHub()
	hub.Join("ghost", "chat:1")

	if hub.InRoom("ghost", "chat:1") {
		t.Error("Unknown connection should not join rooms")
	}
}

func TestHub_JoinIdempotent(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a", &domain.User{ID: "userA"})
	hub.Add(a)

	hub.Join("a", "chat:1")
	hub.Join("a", "chat:1")

	hub.Broadcast(context.Background(), "chat:1", "ping", nil)
	if got := len(a.sent()); got != 1 {
		t.Errorf("Duplicate join caused %d deliveries, want 1", got)
	}
}

func TestHub_LeaveRemovesMembership(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a", &domain.User{ID: "userA"})
	hub.Add(a)
	hub.Join("a", "chat:1")

	hub.Leave("a", "chat:1")
	hub.Leave("a", "chat:1") // idempotent

	if hub.InRoom("a", "chat:1") {
		t.Error("Expected connection out of room after leave")
	}
}

func TestHub_RemoveClearsAllRooms(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a", &domain.User{ID: "userA"})
	hub.Add(a)
	hub.Join("a", "chat:1")
	hub.Join("a", "delivery:9")

	hub.Remove("a")

	if hub.IsConnected("a") {
		t.Error("Expected connection removed")
	}
	if hub.InRoom("a", "chat:1") || hub.InRoom("a", "delivery:9") {
		t.Error("Expected room memberships cleared on remove")
	}
	if members := hub.Members("chat:1"); len(members) != 0 {
		t.Errorf("Expected empty room, got %d members", len(members))
	}
}

func TestHub_MultipleRoomsPerConnection(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a", &domain.User{ID: "userA"})
	hub.Add(a)
	hub.Join("a", "chat:1")
	hub.Join("a", "delivery:9")

	if !hub.InRoom("a", "chat:1") || !hub.InRoom("a", "delivery:9") {
		t.Error("Expected membership in both rooms")
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	go func() {
		for i := 0; i < 1000; i++ {
			id := "conn-" + strconv.Itoa(i)
			hub.Add(newFakeConn(id, &domain.User{ID: id}))
			hub.Join(id, "chat:1")
		}
	}()

	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(context.Background(), "chat:1", "ping", nil)
		}
	}()

	time.Sleep(100 * time.Millisecond)
}
