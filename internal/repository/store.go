// Package store defines the storage interface and its SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// Store defines the interface for conversation and message persistence.
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	// Conversation operations
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) (bool, error)
	DeleteConversation(ctx context.Context, id string) (bool, error)
	DeleteAllConversations(ctx context.Context) error

	// Message operations
	CreateMessage(ctx context.Context, msg *domain.Message) (bool, error)
	FindMessageByClientID(ctx context.Context, conversationID, clientID string) (*domain.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	FinalizeAssistantMessage(ctx context.Context, msg *domain.Message) (bool, error)

	// Lifecycle
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
