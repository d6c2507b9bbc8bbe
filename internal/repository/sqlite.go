package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	// Shared-cache connections fail with SQLITE_LOCKED under contention, which the
	// busy timeout does not retry, so they are serialized too.
	if isMemory(dsn) || isSharedCache(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func isSharedCache(dsn string) bool {
	return strings.Contains(dsn, "cache=shared")
}

// withForeignKeys turns on foreign keys for every pooled connection, not only the
// one that happens to run the PRAGMA.
func withForeignKeys(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_message_at DATETIME NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			client_id TEXT,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		// NULL client ids stay distinct, so only client-keyed messages are constrained.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_client ON messages(conversation_id, client_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at, last_message_at, message_count) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt, conv.LastMessageAt, conv.MessageCount)
	return err
}

const conversationColumns = `id, title, created_at, updated_at, last_message_at, message_count`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := row.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt, &conv.LastMessageAt, &conv.MessageCount); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations lists conversations, most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []domain.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

// UpdateConversationTitle renames a conversation. It reports false when the
// conversation does not exist.
func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, id, title string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, tx.Commit()
}

// DeleteAllConversations clears both tables.
func (s *SQLiteStore) DeleteAllConversations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateMessage inserts a message and bumps the conversation's counters in the
// same transaction. A message whose client id already exists in the conversation
// is left untouched and reported as not created.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, client_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, client_id) DO NOTHING`,
		msg.ID, msg.ConversationID, nullString(msg.ClientID), msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, tx.Commit()
	}
	if err := bumpConversation(ctx, tx, msg.ConversationID, msg.CreatedAt, 1); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// FinalizeAssistantMessage stores a completed assistant turn keyed by its client id.
// An existing message is overwritten in place (content and timestamp) without
// changing the message count; otherwise a new message is inserted and counted.
// It reports whether a new record was created.
func (s *SQLiteStore) FinalizeAssistantMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if msg.ClientID != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE messages SET content = ?, created_at = ? WHERE conversation_id = ? AND client_id = ?`,
			msg.Content, msg.CreatedAt, msg.ConversationID, msg.ClientID)
		if err != nil {
			return false, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if affected > 0 {
			if err := bumpConversation(ctx, tx, msg.ConversationID, msg.CreatedAt, 0); err != nil {
				return false, err
			}
			return false, tx.Commit()
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, client_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, nullString(msg.ClientID), msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return false, err
	}
	if err := bumpConversation(ctx, tx, msg.ConversationID, msg.CreatedAt, 1); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// bumpConversation applies an increment rather than writing an absolute count, so
// concurrent user-turn and finalize writes never lose updates.
func bumpConversation(ctx context.Context, tx *sql.Tx, conversationID string, at time.Time, delta int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + ?, last_message_at = ?, updated_at = ? WHERE id = ?`,
		delta, at, at, conversationID)
	return err
}

const messageColumns = `id, conversation_id, client_id, role, content, created_at`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var clientID sql.NullString
	if err := row.Scan(&msg.ID, &msg.ConversationID, &clientID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
		return nil, err
	}
	if clientID.Valid {
		msg.ClientID = clientID.String
	}
	return &msg, nil
}

// FindMessageByClientID retrieves a message by the id its client assigned.
func (s *SQLiteStore) FindMessageByClientID(ctx context.Context, conversationID, clientID string) (*domain.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? AND client_id = ?`,
		conversationID, clientID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateMessageContent overwrites a message's content and timestamp.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, created_at = ? WHERE id = ?`,
		content, at, id)
	return err
}

// ListMessages retrieves messages for a conversation in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
