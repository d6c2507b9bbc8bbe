package domain

// Turn is one prior turn sent to the relay.
type Turn struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Messages           []Turn `json:"messages"`
	ConversationID     string `json:"conversation_id,omitempty"`
	PersistUserTurn    *bool  `json:"persist_user_turn,omitempty"`
	AssistantMessageID string `json:"assistant_message_id"`
}

// ShouldPersistUserTurn applies the default of true when the flag is omitted.
func (r ChatRequest) ShouldPersistUserTurn() bool {
	if r.PersistUserTurn == nil {
		return true
	}
	return *r.PersistUserTurn
}

// LatestUserTurn returns the last turn authored by the user.
func (r ChatRequest) LatestUserTurn() (Turn, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i], true
		}
	}
	return Turn{}, false
}

// CreateConversationRequest is the body of POST /v1/conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// RenameConversationRequest is the body of PATCH /v1/conversations/:id.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// ErrorResponse is the JSON error body returned by the API.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
