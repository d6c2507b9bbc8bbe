package domain

import (
	"time"
	"unicode/utf8"
)

// Conversation is a durable conversation record.
type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
}

// Message is a durable message record. ClientID is the id the client assigned and
// is the key used for edits, regeneration and finalize.
type Message struct {
	ID             string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	ClientID       string    `json:"client_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageView is a message as returned to clients. ID is the client id when one
// was recorded, otherwise the durable id.
type MessageView struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessageView converts a stored message for the API.
func NewMessageView(m Message) MessageView {
	id := m.ClientID
	if id == "" {
		id = m.ID
	}
	return MessageView{ID: id, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

// ConversationDetail is a conversation together with its messages ordered by creation.
type ConversationDetail struct {
	Conversation
	Messages []MessageView `json:"messages"`
}

// DeriveTitle builds a conversation title from the first user turn: the first
// maxChars characters, with "..." appended when the text was cut.
func DeriveTitle(content string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(content) <= maxChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxChars]) + "..."
}
