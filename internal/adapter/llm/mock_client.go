package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// MockClient is a deterministic LLMClient for local runs and tests.
type MockClient struct {
	// Chunks are emitted verbatim. When nil a reply is derived from the last user turn.
	Chunks []string
	// FailWith is returned after every chunk has been emitted.
	FailWith error
	// Delay is the pause before each chunk.
	Delay time.Duration
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateChatCompletionStream simulates a streaming response.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Completion, error) {
	chunks := m.Chunks
	if chunks == nil {
		chunks = splitIntoChunks(generateMockResponse(req.Messages), 10)
	}

	var text strings.Builder
	completion := &Completion{}
	for _, chunk := range chunks {
		if m.Delay > 0 {
			timer := time.NewTimer(m.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				completion.Text = text.String()
				return completion, ctx.Err()
			case <-timer.C:
			}
		}
		select {
		case <-ctx.Done():
			completion.Text = text.String()
			return completion, ctx.Err()
		default:
		}

		text.WriteString(chunk)
		completion.Fragments++
		if err := callback(chunk); err != nil {
			completion.Text = text.String()
			return completion, err
		}
	}

	completion.Text = text.String()
	if m.FailWith != nil {
		return completion, m.FailWith
	}
	completion.FinishReason = "stop"
	return completion, nil
}

func generateMockResponse(turns []domain.Turn) string {
	var lastUserMessage string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			lastUserMessage = turns[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response."
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// splitIntoChunks splits s into rune-safe chunks of at most chunkSize runes.
func splitIntoChunks(s string, chunkSize int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{}
	}

	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
