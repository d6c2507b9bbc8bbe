package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/deadletter"
	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/llm"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/policy"
	store "github.com/AyeshaKanwal90/ChatAI/internal/repository"
)

var (
	ErrPolicyDenied         = errors.New("chat request denied")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidTitle         = errors.New("title is required")
)

// DeniedError carries the admission policy's reasons.
type DeniedError struct {
	Reasons []string
}

func (e *DeniedError) Error() string {
	return ErrPolicyDenied.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

type Service struct {
	store        store.Store
	llmClient    llm.LLMClient
	policyEngine *policy.Engine
	deadLetter   deadletter.Sink
	config       *config.Config
	log          *logger.Logger
	tasks        *TaskTracker
}

// New wires a Service. A nil policyEngine admits every request and a nil
// deadLetter sink drops failed writes after logging them.
func New(store store.Store, llmClient llm.LLMClient, policyEngine *policy.Engine, deadLetter deadletter.Sink, cfg *config.Config, log *logger.Logger) *Service {
	if deadLetter == nil {
		deadLetter = deadletter.NopSink{}
	}
	return &Service{
		store:        store,
		llmClient:    llmClient,
		policyEngine: policyEngine,
		deadLetter:   deadLetter,
		config:       cfg,
		log:          log.With("service", "ChatService"),
		tasks:        NewTaskTracker(log),
	}
}

// Shutdown waits for in-flight background persistence to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.tasks.Wait(ctx)
}
