package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient streams completions from an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client. An empty baseURL keeps the library default.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// CreateChatCompletionStream implements LLMClient.
func (c *OpenAIClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	completion := &Completion{}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			completion.Text = text.String()
			return completion, nil
		}
		if err != nil {
			completion.Text = text.String()
			return completion, fmt.Errorf("completion stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			completion.FinishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		text.WriteString(choice.Delta.Content)
		completion.Fragments++
		if err := callback(choice.Delta.Content); err != nil {
			completion.Text = text.String()
			return completion, err
		}
	}
}
