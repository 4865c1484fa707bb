// Package api provides HTTP handlers for the cartlane REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cartlane/cartlane/internal/auth"
	"github.com/cartlane/cartlane/internal/domain"
	"github.com/cartlane/cartlane/internal/realtime"
	"github.com/cartlane/cartlane/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler serves the REST surface the realtime layer depends on.
type Handler struct {
	repo   store.Repository
	signer *auth.Signer
	admins *realtime.AdminNotifier
	isDev  bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, signer *auth.Signer, admins *realtime.AdminNotifier, isDev bool) *Handler {
	return &Handler{
		repo:   repo,
		signer: signer,
		admins: admins,
		isDev:  isDev,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the API routes. authMw guards the authenticated group.
func (h *Handler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Post("/api/orders", h.createOrder)
		r.Post("/api/conversations", h.startConversation)
		r.Get("/api/conversations/{id}/messages", h.listMessages)
	})

	r.Get("/healthz", h.health)

	if h.isDev {
		// Token minting for local development only; production tokens come
		// from the auth service that shares TOKEN_SECRET.
		r.Post("/api/dev/token", h.mintToken)
	}
}

type createOrderRequest struct {
	AgentID    string `json:"agent_id,omitempty"`
	TotalCents int64  `json:"total_cents"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalCents < 0 {
		Error(w, http.StatusBadRequest, "total_cents cannot be negative")
		return
	}

	now := time.Now()
	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		AgentID:    req.AgentID,
		Status:     domain.OrderProcessing,
		TotalCents: req.TotalCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.repo.CreateOrder(r.Context(), order); err != nil {
		slog.Error("failed to create order", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	h.admins.Broadcast(r.Context(), realtime.EventNewOrderNotification, realtime.AdminOrderPayload{
		OrderID: order.ID,
		Message: "New order received",
	})

	JSON(w, http.StatusCreated, order)
}

func (h *Handler) startConversation(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	existing, err := h.repo.FindAssistantConversation(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to look up conversation", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to start conversation")
		return
	}
	if existing != nil {
		JSON(w, http.StatusOK, existing)
		return
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:           uuid.NewString(),
		IsAssistant:  true,
		Participants: []string{user.ID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.repo.CreateConversation(r.Context(), conv); err != nil {
		slog.Error("failed to create conversation", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to start conversation")
		return
	}

	h.admins.Broadcast(r.Context(), realtime.EventNewChatNotification, realtime.AdminChatPayload{
		ChatID:  conv.ID,
		UserID:  user.ID,
		Message: "New customer chat started",
	})

	JSON(w, http.StatusCreated, conv)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	conversationID := chi.URLParam(r, "id")

	conv, err := h.repo.GetConversation(r.Context(), conversationID)
	if err != nil {
		slog.Error("failed to load conversation", "conversation_id", conversationID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !user.IsAdmin && !conv.HasParticipant(user.ID) {
		Error(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}

	messages, err := h.repo.ListMessages(r.Context(), conversationID, 200)
	if err != nil {
		slog.Error("failed to list messages", "conversation_id", conversationID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

type mintTokenRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

func (h *Handler) mintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.GetUser(r.Context(), req.UserID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}
	if user == nil {
		now := time.Now()
		user = &domain.User{
			ID:        req.UserID,
			Name:      req.Name,
			Email:     req.UserID + "@dev.local",
			IsAdmin:   req.IsAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if user.Name == "" {
			user.Name = req.UserID
		}
		if err := h.repo.UpsertUser(r.Context(), user); err != nil {
			Error(w, http.StatusInternalServerError, "failed to create user")
			return
		}
	}

	JSON(w, http.StatusOK, map[string]string{"token": h.signer.Sign(user.ID)})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
