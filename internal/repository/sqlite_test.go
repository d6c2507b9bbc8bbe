package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedConversation(t *testing.T, s *SQLiteStore, id, title string, at time.Time) {
	t.Helper()
	err := s.CreateConversation(context.Background(), &domain.Conversation{
		ID: id, Title: title, CreatedAt: at, UpdatedAt: at, LastMessageAt: at,
	})
	require.NoError(t, err)
}

func TestSQLiteStoreConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	seedConversation(t, s, "c1", "first", now.Add(-time.Minute))
	seedConversation(t, s, "c2", "second", now)

	got, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, 0, got.MessageCount)

	missing, err := s.GetConversation(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)

	// Renaming bumps updated_at, so c1 moves to the front.
	found, err := s.UpdateConversationTitle(ctx, "c1", "renamed")
	require.NoError(t, err)
	assert.True(t, found)
	list, err = s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "renamed", list[0].Title)

	found, err = s.UpdateConversationTitle(ctx, "nope", "x")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStoreCreateMessageCountsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()
	seedConversation(t, s, "c1", "t", now)

	msg := &domain.Message{ID: "m1", ConversationID: "c1", ClientID: "u1", Role: domain.RoleUser, Content: "hi", CreatedAt: now}
	created, err := s.CreateMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, created)

	// Same client id again is ignored.
	dup := &domain.Message{ID: "m2", ConversationID: "c1", ClientID: "u1", Role: domain.RoleUser, Content: "hi", CreatedAt: now}
	created, err = s.CreateMessage(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.MessageCount)

	// Messages without a client id never collide.
	for i := 0; i < 2; i++ {
		created, err = s.CreateMessage(ctx, &domain.Message{
			ID: fmt.Sprintf("s%d", i), ConversationID: "c1", Role: domain.RoleSystem, Content: "sys", CreatedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, created)
	}
	conv, err = s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, conv.MessageCount)
}

func TestSQLiteStoreFinalizeAssistantMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	start := time.Now().UTC().Add(-time.Hour)
	seedConversation(t, s, "c1", "t", start)

	first := &domain.Message{ID: "d1", ConversationID: "c1", ClientID: "a1", Role: domain.RoleAssistant, Content: "Hello", CreatedAt: start.Add(time.Minute)}
	created, err := s.FinalizeAssistantMessage(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	later := start.Add(2 * time.Minute)
	again := &domain.Message{ID: "d2", ConversationID: "c1", ClientID: "a1", Role: domain.RoleAssistant, Content: "Hi there", CreatedAt: later}
	created, err = s.FinalizeAssistantMessage(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "d1", msgs[0].ID)
	assert.Equal(t, "Hi there", msgs[0].Content)
	assert.True(t, msgs[0].CreatedAt.Equal(later))

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.MessageCount)
	assert.True(t, conv.LastMessageAt.Equal(later))
}

func TestSQLiteStoreConcurrentWritesKeepCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()
	seedConversation(t, s, "c1", "t", now)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateMessage(ctx, &domain.Message{
				ID: fmt.Sprintf("u%d", i), ConversationID: "c1", ClientID: fmt.Sprintf("cu%d", i),
				Role: domain.RoleUser, Content: "q", CreatedAt: time.Now().UTC(),
			})
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := s.FinalizeAssistantMessage(ctx, &domain.Message{
				ID: fmt.Sprintf("a%d", i), ConversationID: "c1", ClientID: fmt.Sprintf("ca%d", i),
				Role: domain.RoleAssistant, Content: "a", CreatedAt: time.Now().UTC(),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 20, conv.MessageCount)
}

func TestSQLiteStoreFileConcurrentReadsAndWrites(t *testing.T) {
	for name, query := range map[string]string{
		"wal":          "mode=rwc&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate",
		"shared cache": "cache=shared&mode=rwc&_busy_timeout=5000",
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := NewSQLiteStore("file:" + filepath.Join(t.TempDir(), "chat.db") + "?" + query)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			seedConversation(t, s, "c1", "t", time.Now().UTC())

			var wg sync.WaitGroup
			for i := 0; i < 40; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					_, err := s.CreateMessage(ctx, &domain.Message{
						ID: fmt.Sprintf("u%d", i), ConversationID: "c1", ClientID: fmt.Sprintf("cu%d", i),
						Role: domain.RoleUser, Content: "q", CreatedAt: time.Now().UTC(),
					})
					assert.NoError(t, err)
				}(i)
				go func() {
					defer wg.Done()
					_, err := s.ListConversations(ctx)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			conv, err := s.GetConversation(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, 40, conv.MessageCount)
		})
	}
}

func TestSQLiteStoreListMessagesOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Now().UTC()
	seedConversation(t, s, "c1", "t", base)

	_, err := s.CreateMessage(ctx, &domain.Message{ID: "m2", ConversationID: "c1", ClientID: "x2", Role: domain.RoleAssistant, Content: "b", CreatedAt: base.Add(2 * time.Second)})
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, &domain.Message{ID: "m1", ConversationID: "c1", ClientID: "x1", Role: domain.RoleUser, Content: "a", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "x1", msgs[0].ClientID)
	assert.Equal(t, "m2", msgs[1].ID)

	found, err := s.FindMessageByClientID(ctx, "c1", "x2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "m2", found.ID)

	none, err := s.FindMessageByClientID(ctx, "c1", "zzz")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.UpdateMessageContent(ctx, "m1", "edited", base.Add(time.Second)))
	msgs, err = s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "edited", msgs[0].Content)
}

func TestSQLiteStoreDeletes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()
	seedConversation(t, s, "c1", "a", now)
	seedConversation(t, s, "c2", "b", now)
	_, err := s.CreateMessage(ctx, &domain.Message{ID: "m1", ConversationID: "c1", ClientID: "x", Role: domain.RoleUser, Content: "a", CreatedAt: now})
	require.NoError(t, err)

	found, err := s.DeleteConversation(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	found, err = s.DeleteConversation(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.DeleteAllConversations(ctx))
	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, ":memory:", withForeignKeys(":memory:"))
	assert.Equal(t, "file:chat.db?_foreign_keys=on", withForeignKeys("file:chat.db"))
	assert.Equal(t, "file:chat.db?mode=rwc&_foreign_keys=on", withForeignKeys("file:chat.db?mode=rwc"))
	assert.Equal(t, "file:x.db?_fk=1", withForeignKeys("file:x.db?_fk=1"))
}
