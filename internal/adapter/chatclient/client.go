// Package chatclient provides the HTTP client for the chat relay's API.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStream marks a generation failure reported by the relay after the stream began.
	ErrStream = errors.New("stream failed")
)

// Client is an HTTP client for the relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new relay client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for streaming
		},
	}
}

// StreamChat posts req to /v1/chat. onHeaders receives the durable conversation
// id before any fragment; onFragment receives the body as it arrives. A terminal
// error reported by the relay is returned wrapped in ErrStream.
func (c *Client) StreamChat(ctx context.Context, req *domain.ChatRequest, onHeaders func(conversationID string), onFragment func(fragment string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	onHeaders(resp.Header.Get(domain.HeaderConversationID))

	if err := readFragments(resp.Body, onFragment); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}

	// Trailers are only populated once the body has been read to EOF.
	if msg := resp.Trailer.Get(domain.TrailerStreamError); msg != "" {
		return fmt.Errorf("%w: %s", ErrStream, msg)
	}
	return nil
}

// readFragments forwards the body in read-sized pieces, holding back an
// incomplete trailing UTF-8 sequence until the rest of it arrives.
func readFragments(r io.Reader, onFragment func(string)) error {
	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := completePrefix(data)
			if cut > 0 {
				onFragment(string(data[:cut]))
			}
			carry = append([]byte(nil), data[cut:]...)
		}
		if errors.Is(err, io.EOF) {
			if len(carry) > 0 {
				onFragment(string(carry))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// ListConversations returns conversations, most recently updated first.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var resp struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// CreateConversation creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/v1/conversations", domain.CreateConversationRequest{Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation returns a conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*domain.ConversationDetail, error) {
	var detail domain.ConversationDetail
	if err := c.doJSON(ctx, http.MethodGet, "/v1/conversations/"+id, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	return c.doJSON(ctx, http.MethodPatch, "/v1/conversations/"+id, domain.RenameConversationRequest{Title: title}, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/conversations/"+id, nil, nil)
}

func (c *Client) DeleteAllConversations(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/conversations", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	var apiErr domain.ErrorResponse
	msg := strings.TrimSpace(string(bodyBytes))
	if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
		if len(apiErr.Reasons) > 0 {
			msg += ": " + strings.Join(apiErr.Reasons, "; ")
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, msg)
}
