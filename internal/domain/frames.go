package domain

// WebSocket frame types for the chat binding.
const (
	FrameChat         = "chat"
	FrameConversation = "conversation"
	FrameDelta        = "delta"
	FrameDone         = "done"
	FrameError        = "error"
)

// ChatFrame is sent by a WebSocket client to start a generation.
type ChatFrame struct {
	Type string `json:"type"`
	ChatRequest
}

// StreamFrame is sent by the server over the WebSocket binding.
type StreamFrame struct {
	Type           string   `json:"type"`
	Ts             int64    `json:"ts"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Text           string   `json:"text,omitempty"`
	Message        string   `json:"message,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}
