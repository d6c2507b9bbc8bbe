package v1

import (
	"context"
	"testing"
	"time"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/llm"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/policy"
	store "github.com/AyeshaKanwal90/ChatAI/internal/repository"
	"github.com/AyeshaKanwal90/ChatAI/internal/service"
	"github.com/AyeshaKanwal90/ChatAI/internal/testutil"
)

func newTestHandler(t *testing.T, client llm.LLMClient) (*Handler, *service.Service, store.Store) {
	t.Helper()
	cfg := &config.Config{
		OpenAIModel:       "mock",
		GenerationTimeout: 5 * time.Second,
		PersistTimeout:    5 * time.Second,
		TitleMaxChars:     30,
	}
	db := testutil.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	svc := service.New(db, client, policyEngine, nil, cfg, logger.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return NewHandler(svc, logger.NewNop()), svc, db
}

// drain waits for the relay's detached writes.
func drain(t *testing.T, svc *service.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("background tasks did not finish: %v", err)
	}
}
