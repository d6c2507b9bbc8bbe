package chatclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/llm"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/policy"
	"github.com/AyeshaKanwal90/ChatAI/internal/service"
	"github.com/AyeshaKanwal90/ChatAI/internal/testutil"
	transport "github.com/AyeshaKanwal90/ChatAI/internal/transport/http"
)

func newTestRelay(t *testing.T, source llm.LLMClient) (*Client, *service.Service) {
	t.Helper()
	cfg := &config.Config{
		OpenAIModel:       "mock",
		GenerationTimeout: 5 * time.Second,
		PersistTimeout:    5 * time.Second,
		TitleMaxChars:     30,
		WSWriteTimeout:    time.Second,
	}
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	svc := service.New(testutil.NewTestSQLiteStore(t), source, engine, nil, cfg, logger.NewNop())
	server := httptest.NewServer(transport.NewServer(svc, cfg, logger.NewNop()))
	t.Cleanup(server.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return NewClient(server.URL + "/"), svc
}

func waitPersisted(t *testing.T, svc *service.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}

func TestStreamChat(t *testing.T) {
	client, svc := newTestRelay(t, &llm.MockClient{Chunks: []string{"Hi", " there"}})
	ctx := context.Background()

	var convID string
	var text strings.Builder
	headersFirst := false
	err := client.StreamChat(ctx, &domain.ChatRequest{
		Messages:           []domain.Turn{{ID: "u1", Role: domain.RoleUser, Content: "Hello"}},
		AssistantMessageID: "a1",
	}, func(id string) {
		convID = id
		headersFirst = text.Len() == 0
	}, func(fragment string) {
		text.WriteString(fragment)
	})
	require.NoError(t, err)
	assert.True(t, headersFirst)
	assert.Equal(t, "Hi there", text.String())
	_, err = uuid.Parse(convID)
	require.NoError(t, err)

	waitPersisted(t, svc)
	detail, err := client.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", detail.Title)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "a1", detail.Messages[1].ID)
}

func TestStreamChatTerminalError(t *testing.T) {
	client, _ := newTestRelay(t, &llm.MockClient{Chunks: []string{"par"}, FailWith: errors.New("overloaded")})

	var text strings.Builder
	err := client.StreamChat(context.Background(), &domain.ChatRequest{
		Messages:           []domain.Turn{{ID: "u1", Role: domain.RoleUser, Content: "Hello"}},
		AssistantMessageID: "a1",
	}, func(string) {}, func(fragment string) { text.WriteString(fragment) })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStream)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, "par", text.String())
}

func TestStreamChatRejected(t *testing.T) {
	client, _ := newTestRelay(t, llm.NewMockClient())

	called := false
	err := client.StreamChat(context.Background(), &domain.ChatRequest{AssistantMessageID: "a1"},
		func(string) { called = true }, func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "messages must not be empty")
	assert.False(t, called)
}

func TestConversationCalls(t *testing.T) {
	client, _ := newTestRelay(t, llm.NewMockClient())
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConversationTitle, conv.Title)

	require.NoError(t, client.RenameConversation(ctx, conv.ID, "Renamed"))
	list, err := client.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Title)

	require.NoError(t, client.DeleteConversation(ctx, conv.ID))
	err = client.DeleteConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = client.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.CreateConversation(ctx, "again")
	require.NoError(t, err)
	require.NoError(t, client.DeleteAllConversations(ctx))
	list, err = client.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReadFragmentsKeepsRunesWhole(t *testing.T) {
	var fragments []string
	err := readFragments(iotest.OneByteReader(strings.NewReader("héllo 世界")), func(f string) {
		fragments = append(fragments, f)
	})
	require.NoError(t, err)
	assert.Equal(t, "héllo 世界", strings.Join(fragments, ""))
	for _, f := range fragments {
		assert.True(t, strings.ToValidUTF8(f, "?") == f, "fragment %q splits a rune", f)
	}
}
