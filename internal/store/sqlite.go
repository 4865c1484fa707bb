package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cartlane/cartlane/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		agent_id TEXT,
		status TEXT NOT NULL,
		total_cents INTEGER NOT NULL DEFAULT 0,
		last_lat REAL,
		last_lng REAL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		is_assistant INTEGER NOT NULL DEFAULT 1,
		latest_message_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT,
		content TEXT NOT NULL,
		is_staff INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT id, name, email, is_admin, created_at, updated_at FROM users WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var createdAt, updatedAt int64

	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.IsAdmin, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, name, email, is_admin, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		email = excluded.email,
		is_admin = excluded.is_admin,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.IsAdmin,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, agent_id, status, total_cents, last_lat, last_lng, created_at, updated_at
		FROM orders WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, orderID)

	var order domain.Order
	var agentID sql.NullString
	var lat, lng sql.NullFloat64
	var createdAt, updatedAt int64

	err := row.Scan(
		&order.ID, &order.UserID, &agentID, &order.Status, &order.TotalCents,
		&lat, &lng, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	order.AgentID = agentID.String
	if lat.Valid && lng.Valid {
		order.LastLocation = &domain.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	order.CreatedAt = time.Unix(createdAt, 0)
	order.UpdatedAt = time.Unix(updatedAt, 0)

	return &order, nil
}

// CreateOrder inserts a new order.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `
	INSERT INTO orders (id, user_id, agent_id, status, total_cents, last_lat, last_lng, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var agentID interface{}
	if order.AgentID != "" {
		agentID = order.AgentID
	}

	var lat, lng interface{}
	if order.LastLocation != nil {
		lat = order.LastLocation.Lat
		lng = order.LastLocation.Lng
	}

	_, err := s.db.ExecContext(ctx, query,
		order.ID, order.UserID, agentID, order.Status, order.TotalCents,
		lat, lng, order.CreatedAt.Unix(), order.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// UpdateOrderStatus sets the delivery status of an order.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().Unix(), orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

// UpdateOrderLocation stores the most recent delivery location of an order.
func (s *SQLiteStore) UpdateOrderLocation(ctx context.Context, orderID string, loc domain.Location) error {
	query := `UPDATE orders SET last_lat = ?, last_lng = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, loc.Lat, loc.Lng, time.Now().Unix(), orderID)
	if err != nil {
		return fmt.Errorf("update order location: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateOrderLocation affected 0 rows", "order_id", orderID)
	}
	return nil
}

// GetConversation retrieves a conversation with its participant set.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	query := `SELECT id, is_assistant, latest_message_id, created_at, updated_at FROM conversations WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, conversationID)

	var conv domain.Conversation
	var latestID sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&conv.ID, &conv.IsAssistant, &latestID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	conv.LatestMessageID = latestID.String
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)

	participants, err := s.listParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Participants = participants

	return &conv, nil
}

func (s *SQLiteStore) listParticipants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY user_id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close participants rows", "error", closeErr)
		}
	}()

	var participants []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		participants = append(participants, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return participants, nil
}

// CreateConversation inserts a new conversation and its participants.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, is_assistant, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.IsAssistant, conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	for _, userID := range conv.Participants {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)`,
			conv.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation: %w", err)
	}
	return nil
}

// FindAssistantConversation returns the user's open assistant conversation, if any.
func (s *SQLiteStore) FindAssistantConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	query := `
		SELECT c.id FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ? AND c.is_assistant = 1
		ORDER BY c.created_at DESC LIMIT 1`

	var conversationID string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&conversationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find assistant conversation: %w", err)
	}

	return s.GetConversation(ctx, conversationID)
}

// MarkConversationStaffed flips an assistant conversation to human-staffed and
// adds the staff user to its participants.
func (s *SQLiteStore) MarkConversationStaffed(ctx context.Context, conversationID, staffUserID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET is_assistant = 0, updated_at = ? WHERE id = ? AND is_assistant = 1`,
		time.Now().Unix(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("mark conversation staffed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)`,
		conversationID, staffUserID,
	)
	if err != nil {
		return fmt.Errorf("add staff participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit staff takeover: %w", err)
	}
	return nil
}

// CreateMessage inserts a message and updates the conversation's latest-message
// reference in one transaction.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var senderID interface{}
	if msg.SenderID != "" {
		senderID = msg.SenderID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, is_staff, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, senderID, msg.Content, msg.IsStaff, msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET latest_message_id = ?, updated_at = ? WHERE id = ?`,
		msg.ID, time.Now().Unix(), msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("update latest message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit messages of a conversation, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, is_staff, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close messages rows", "error", closeErr)
		}
	}()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var senderID sql.NullString
		var createdAt int64

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &senderID, &msg.Content, &msg.IsStaff, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.SenderID = senderID.String
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
