// cartlane - storefront backend server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartlane/cartlane/internal/api"
	"github.com/cartlane/cartlane/internal/auth"
	"github.com/cartlane/cartlane/internal/config"
	"github.com/cartlane/cartlane/internal/middleware"
	"github.com/cartlane/cartlane/internal/notify"
	"github.com/cartlane/cartlane/internal/realtime"
	"github.com/cartlane/cartlane/internal/responder"
	"github.com/cartlane/cartlane/internal/store"
	"github.com/cartlane/cartlane/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	signer, err := auth.NewSigner(cfg.TokenSecret)
	if err != nil {
		slog.Error("Failed to initialize token signer", "error", err)
		os.Exit(1)
	}

	// Automated assistant (optional).
	var assistant responder.Responder
	if cfg.Assistant.APIKey != "" {
		assistant, err = responder.NewOpenAI(cfg.Assistant.APIKey, cfg.Assistant.Model)
		if err != nil {
			slog.Error("Failed to initialize assistant responder", "error", err)
			os.Exit(1)
		}
		slog.Info("Shop assistant enabled", "model", cfg.Assistant.Model)
	} else {
		slog.Info("Shop assistant disabled (ASSISTANT_API_KEY not set)")
	}

	// Admin-event broker mirror (optional).
	var publisher notify.Publisher
	if cfg.AMQP.URL != "" {
		amqpPub, err := notify.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			slog.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := amqpPub.Close(); closeErr != nil {
				slog.Warn("Failed to close AMQP publisher", "error", closeErr)
			}
		}()
		publisher = amqpPub
		slog.Info("Admin-event broker mirror enabled", "exchange", cfg.AMQP.Exchange)
	} else {
		slog.Info("Admin-event broker mirror disabled (AMQP_URL not set)")
	}

	// Initialize realtime services.
	hub := realtime.NewHub()
	registry := realtime.NewAdminRegistry()
	admins := realtime.NewAdminNotifier(hub, registry, publisher)
	gate := realtime.NewGate(signer, repo)
	chat := realtime.NewChatService(repo, hub, assistant)
	delivery := realtime.NewDeliveryService(repo, hub, admins)
	wsHandler := realtime.NewWebSocketHandler(gate, hub, admins, chat, delivery, cfg.FrontendURL, cfg.IsDevelopment())

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, signer, admins, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	apiHandler.RegisterRoutes(r, auth.Middleware(signer, repo))

	// WebSocket endpoint (authenticates via its own handshake gate).
	r.Get("/ws", wsHandler.ServeHTTP)

	// Prometheus metrics.
	r.Handle("/metrics", promhttp.Handler())

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: WebSocket connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
