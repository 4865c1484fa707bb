package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/cartlane/cartlane/internal/auth"
	"github.com/cartlane/cartlane/internal/domain"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WebSocketHandler upgrades connections, runs the handshake gate, and
// dispatches socket events to the chat and delivery services.
type WebSocketHandler struct {
	gate          *Gate
	hub           *Hub
	admins        *AdminNotifier
	chat          *ChatService
	delivery      *DeliveryService
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the realtime socket handler.
func NewWebSocketHandler(gate *Gate, hub *Hub, admins *AdminNotifier, chat *ChatService, delivery *DeliveryService, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		gate:          gate,
		hub:           hub,
		admins:        admins,
		chat:          chat,
		delivery:      delivery,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsConn adapts websocket.Conn to the Conn interface. Writes are serialized
// with a mutex since multiple broadcasts may target the same connection.
type wsConn struct {
	id      string
	user    *domain.User
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(ws *websocket.Conn, user *domain.User) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		user: user,
		ws:   ws,
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) User() *domain.User {
	return c.user
}

func (c *wsConn) Send(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, frame)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The gate runs before any event handling; failure is fatal to the
	// connection and never retried server-side.
	user, err := h.gate.Authenticate(ctx, auth.TokenFromRequest(r))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			slog.Warn("WebSocket authentication rejected", "ip", r.RemoteAddr, "error", err)
		} else {
			slog.Error("WebSocket authentication error", "ip", r.RemoteAddr, "error", err)
		}
		_ = ws.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	conn := newWSConn(ws, user)
	slog.Info("WebSocket connected", "conn_id", conn.ID(), "user_id", user.ID, "is_admin", user.IsAdmin, "ip", r.RemoteAddr)

	h.hub.Add(conn)
	defer h.hub.Remove(conn.ID())

	if user.IsAdmin {
		h.admins.Registry().Register(conn.ID())
		defer h.admins.Registry().Unregister(conn.ID())
	}

	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "conn_id", conn.ID())
		}
	}()

	h.readLoop(ctx, conn)
	slog.Info("WebSocket disconnected", "conn_id", conn.ID(), "user_id", user.ID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *wsConn) {
	for {
		_, raw, err := conn.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn_id", conn.ID())
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "conn_id", conn.ID())
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(ctx, conn, "malformed event frame")
			continue
		}

		h.dispatch(ctx, conn, env)
	}
}

//nolint:gocognit // Event dispatch is a flat switch over the wire protocol.
func (h *WebSocketHandler) dispatch(ctx context.Context, conn *wsConn, env Envelope) {
	switch env.Event {
	case EventJoinChatRoom:
		var chatID string
		if err := json.Unmarshal(env.Data, &chatID); err != nil || chatID == "" {
			h.sendError(ctx, conn, "invalid conversation id")
			return
		}
		h.hub.Join(conn.ID(), ChatRoom(chatID))

	case EventNewMessage:
		var p NewMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ChatID == "" || p.Content == "" {
			h.sendError(ctx, conn, "invalid message payload")
			return
		}
		if err := h.chat.HandleIncoming(ctx, conn.User(), p); err != nil {
			if errors.Is(err, ErrConversationNotFound) {
				h.sendError(ctx, conn, "conversation not found")
				return
			}
			slog.Error("failed to handle message", "conn_id", conn.ID(), "chat_id", p.ChatID, "error", err)
			h.sendError(ctx, conn, "failed to send message")
		}

	case EventTyping, EventStopTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ChatID == "" {
			return
		}
		h.chat.RelayTyping(ctx, conn, env.Event, p.ChatID)

	case EventJoinDeliveryRoom:
		var p JoinDeliveryPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.OrderID == "" {
			h.sendError(ctx, conn, "invalid delivery join payload")
			return
		}
		if p.UserID != "" && p.UserID != conn.User().ID {
			// Claimed id is advisory only; authorization uses the session user.
			slog.Warn("delivery join claimed mismatched user", "conn_id", conn.ID(), "claimed", p.UserID, "actual", conn.User().ID)
		}
		if err := h.delivery.Join(ctx, conn, p.OrderID); err != nil {
			slog.Error("failed to join delivery room", "conn_id", conn.ID(), "order_id", p.OrderID, "error", err)
			h.sendError(ctx, conn, "failed to join delivery room")
		}

	case EventUpdateLocation:
		var p UpdateLocationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.OrderID == "" {
			h.sendError(ctx, conn, "invalid location payload")
			return
		}
		if err := h.delivery.RelayLocation(ctx, conn, p); err != nil {
			slog.Error("failed to relay location", "conn_id", conn.ID(), "order_id", p.OrderID, "error", err)
		}

	case EventCompleteDelivery, EventCancelDelivery:
		var orderID string
		if err := json.Unmarshal(env.Data, &orderID); err != nil || orderID == "" {
			h.sendError(ctx, conn, "invalid order id")
			return
		}
		var err error
		if env.Event == EventCompleteDelivery {
			err = h.delivery.Complete(ctx, conn, orderID)
		} else {
			err = h.delivery.Cancel(ctx, conn, orderID)
		}
		if err != nil {
			slog.Error("failed to update delivery status", "conn_id", conn.ID(), "order_id", orderID, "event", env.Event, "error", err)
			h.sendError(ctx, conn, "failed to update delivery")
		}

	default:
		slog.Debug("unknown socket event", "event", env.Event, "conn_id", conn.ID())
	}
}

func (h *WebSocketHandler) sendError(ctx context.Context, conn *wsConn, message string) {
	if err := conn.Send(ctx, EventError, ErrorPayload{Message: message}); err != nil {
		slog.Debug("failed to send error event", "conn_id", conn.ID(), "error", err)
	}
}
