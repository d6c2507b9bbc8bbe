// Package llm provides the token-stream sources used to generate assistant replies.
package llm

import (
	"context"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// StreamCallback is called for each text fragment, in order. Returning an error
// stops the stream.
type StreamCallback func(fragment string) error

// ChatCompletionRequest is a streaming completion request.
type ChatCompletionRequest struct {
	Model    string
	Messages []domain.Turn
}

// Completion summarizes a finished stream.
type Completion struct {
	Text         string
	Fragments    int
	FinishReason string
}

// LLMClient defines the interface for a token-stream source.
type LLMClient interface {
	// CreateChatCompletionStream streams the reply for req through callback and
	// returns the accumulated completion once the source is exhausted.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Completion, error)
}

// Ensure implementations satisfy LLMClient.
var (
	_ LLMClient = (*OpenAIClient)(nil)
	_ LLMClient = (*MockClient)(nil)
)
