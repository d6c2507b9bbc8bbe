// Package domain defines the core domain models for the chat relay.
package domain

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Rating is the user's feedback on an assistant message.
type Rating string

const (
	RatingUnset    Rating = ""
	RatingLiked    Rating = "liked"
	RatingDisliked Rating = "disliked"
)

// Valid reports whether r is one of the known ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingUnset, RatingLiked, RatingDisliked:
		return true
	}
	return false
}

// DefaultConversationTitle is used when a conversation is created without a title.
const DefaultConversationTitle = "New Chat"

// HeaderConversationID carries the resolved durable conversation id on a chat response.
const HeaderConversationID = "X-Conversation-Id"

// TrailerStreamError carries a terminal generation error after the streamed body.
const TrailerStreamError = "X-Stream-Error"
