package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/deadletter"
	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/llm"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/policy"
	store "github.com/AyeshaKanwal90/ChatAI/internal/repository"
	"github.com/AyeshaKanwal90/ChatAI/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		OpenAIModel:       "mock",
		GenerationTimeout: 5 * time.Second,
		PersistTimeout:    5 * time.Second,
		TitleMaxChars:     30,
	}
}

type testEnv struct {
	svc   *Service
	store store.Store
	sink  *recordingSink
}

func newTestEnv(t *testing.T, client llm.LLMClient, st store.Store) *testEnv {
	t.Helper()
	if st == nil {
		st = testutil.NewTestSQLiteStore(t)
	}
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	sink := &recordingSink{}
	svc := New(st, client, engine, sink, testConfig(), logger.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &testEnv{svc: svc, store: st, sink: sink}
}

// waitTasks blocks until the relay's background work is done.
func waitTasks(t *testing.T, res *RelayResult) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = res.UserTask.Wait(ctx)
	_ = res.FinalizeTask.Wait(ctx)
	require.NoError(t, ctx.Err())
}

type recordingWriter struct {
	mu             sync.Mutex
	conversationID string
	fragments      []string
	beganFirst     bool
	failWrites     bool
	onBegin        func()
}

func (w *recordingWriter) Begin(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conversationID = id
	w.beganFirst = len(w.fragments) == 0
	if w.onBegin != nil {
		w.onBegin()
	}
	return nil
}

func (w *recordingWriter) Write(fragment string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWrites {
		return errors.New("broken pipe")
	}
	w.fragments = append(w.fragments, fragment)
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	entries []deadletter.Entry
}

func (s *recordingSink) Record(_ context.Context, e deadletter.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) List(context.Context, int64) ([]deadletter.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]deadletter.Entry(nil), s.entries...), nil
}

func (s *recordingSink) Close() error { return nil }

// failingStore breaks selected writes.
type failingStore struct {
	store.Store
	failCreateMessage bool
	failFinalize      bool
}

func (f *failingStore) CreateMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	if f.failCreateMessage {
		return false, errors.New("disk full")
	}
	return f.Store.CreateMessage(ctx, msg)
}

func (f *failingStore) FinalizeAssistantMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	if f.failFinalize {
		return false, errors.New("database is locked")
	}
	return f.Store.FinalizeAssistantMessage(ctx, msg)
}
