package session

import (
	"context"
	"errors"
	"time"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// ErrorMarker is appended to a reply whose stream failed.
const ErrorMarker = "\n[Error generating response]"

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrEmptyTitle       = errors.New("title is empty")
	ErrStreamInProgress = errors.New("a reply is already streaming in this conversation")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotAssistant     = errors.New("message is not an assistant reply")
	ErrNotUser          = errors.New("message is not a user message")
	ErrInvalidRating    = errors.New("invalid rating")
	ErrNoConversation   = errors.New("conversation not found")
)

// Message is a message as the client holds it.
type Message struct {
	ID        string
	Role      domain.Role
	Content   string
	Rating    domain.Rating
	Pending   bool
	CreatedAt time.Time
}

// Summary is one entry of the conversation list.
type Summary struct {
	Ref          ConversationRef
	Title        string
	UpdatedAt    time.Time
	MessageCount int
}

// Transport is the client side of the relay API.
type Transport interface {
	// StreamChat sends req; onHeaders receives the durable conversation id before
	// any fragment and onFragment each piece of the reply in order.
	StreamChat(ctx context.Context, req *domain.ChatRequest, onHeaders func(conversationID string), onFragment func(fragment string)) error
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (*domain.ConversationDetail, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context) error
}

// RatingStore keeps ratings, which never reach the relay, across client runs.
type RatingStore interface {
	Load(conversationID string) (map[string]domain.Rating, error)
	Save(conversationID, messageID string, rating domain.Rating) error
	DeleteConversation(conversationID string) error
	Clear() error
}
