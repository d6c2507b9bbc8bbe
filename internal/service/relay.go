package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/deadletter"
	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/llm"
	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// StreamWriter is the transport side of a relay. Begin is called once with the
// durable conversation id before any fragment.
type StreamWriter interface {
	Begin(conversationID string) error
	Write(fragment string) error
}

// RelayResult describes a relay once the token stream has ended.
type RelayResult struct {
	ConversationID      string
	ConversationCreated bool
	Text                string
	// GenerationErr is set when the token source failed after streaming began.
	GenerationErr error
	// UserTask and FinalizeTask are nil when the step did not run.
	UserTask     *Task
	FinalizeTask *Task
}

// Relay admits req, resolves its conversation, streams the reply to w and
// schedules the persistence of both turns. The returned error is set only for
// failures before the stream began; later failures land in RelayResult.
func (s *Service) Relay(ctx context.Context, req *domain.ChatRequest, w StreamWriter) (*RelayResult, error) {
	if err := s.admit(ctx, req); err != nil {
		return nil, err
	}

	conv, created, err := s.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}
	log := s.log.With("conversation_id", conv.ID, "assistant_message_id", req.AssistantMessageID)

	result := &RelayResult{ConversationID: conv.ID, ConversationCreated: created}

	writerGone := false
	if err := w.Begin(conv.ID); err != nil {
		log.Debug("client went away before headers", "error", err)
		writerGone = true
	}

	if req.ShouldPersistUserTurn() {
		if turn, ok := req.LatestUserTurn(); ok {
			result.UserTask = s.tasks.Go("persist-user-turn", func() error {
				return s.persistUserTurn(conv.ID, turn)
			})
		}
	}

	// Generation outlives the request so a disconnect still yields a finalized turn.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.GenerationTimeout)
	defer cancel()

	completion, genErr := s.llmClient.CreateChatCompletionStream(genCtx, &llm.ChatCompletionRequest{
		Model:    s.config.OpenAIModel,
		Messages: req.Messages,
	}, func(fragment string) error {
		if writerGone {
			return nil
		}
		if err := w.Write(fragment); err != nil {
			log.Debug("client went away mid-stream, continuing generation", "error", err)
			writerGone = true
		}
		return nil
	})
	if completion != nil {
		result.Text = completion.Text
	}
	if genErr != nil {
		log.Error("generation failed", "error", genErr)
		result.GenerationErr = fmt.Errorf("generation failed: %w", genErr)
		return result, nil
	}

	userTask := result.UserTask
	text := result.Text
	result.FinalizeTask = s.tasks.Go("finalize-assistant", func() error {
		if userTask != nil {
			<-userTask.Done()
		}
		return s.finalizeAssistant(conv.ID, req.AssistantMessageID, text)
	})
	return result, nil
}

func (s *Service) admit(ctx context.Context, req *domain.ChatRequest) error {
	if s.policyEngine == nil {
		return nil
	}
	reasons, err := s.policyEngine.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		return &DeniedError{Reasons: reasons}
	}
	return nil
}

// resolveConversation returns the referenced conversation, or creates one when
// the reference is absent, malformed, unknown or cannot be looked up.
func (s *Service) resolveConversation(ctx context.Context, req *domain.ChatRequest) (*domain.Conversation, bool, error) {
	if id := strings.TrimSpace(req.ConversationID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			s.log.Warn("malformed conversation id, creating a new conversation", "conversation_id", id)
		} else {
			conv, err := s.store.GetConversation(ctx, id)
			switch {
			case err != nil:
				s.log.Warn("conversation lookup failed, creating a new conversation", "conversation_id", id, "error", err)
			case conv == nil:
				s.log.Info("conversation not found, creating a new conversation", "conversation_id", id)
			default:
				return conv, false, nil
			}
		}
	}

	title := domain.DefaultConversationTitle
	if turn, ok := req.LatestUserTurn(); ok {
		if content := strings.TrimSpace(turn.Content); content != "" {
			title = domain.DeriveTitle(content, s.config.TitleMaxChars)
		}
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:            uuid.NewString(),
		Title:         title,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, true, nil
}

func (s *Service) persistUserTurn(conversationID string, turn domain.Turn) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PersistTimeout)
	defer cancel()

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ClientID:       turn.ID,
		Role:           domain.RoleUser,
		Content:        turn.Content,
		CreatedAt:      time.Now().UTC(),
	}
	created, err := s.store.CreateMessage(ctx, msg)
	if err != nil {
		s.recordFailure(deadletter.KindUserTurn, msg, err)
		return err
	}
	if !created {
		s.log.Debug("user turn already stored", "conversation_id", conversationID, "client_id", turn.ID)
	}
	return nil
}

func (s *Service) finalizeAssistant(conversationID, clientID, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PersistTimeout)
	defer cancel()

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ClientID:       clientID,
		Role:           domain.RoleAssistant,
		Content:        text,
		CreatedAt:      time.Now().UTC(),
	}
	created, err := s.store.FinalizeAssistantMessage(ctx, msg)
	if err != nil {
		s.recordFailure(deadletter.KindAssistantFinalize, msg, err)
		return err
	}
	s.log.Debug("assistant turn finalized", "conversation_id", conversationID, "client_id", clientID, "created", created)
	return nil
}

// recordFailure logs a lost write and hands it to the dead-letter sink.
func (s *Service) recordFailure(kind string, msg *domain.Message, cause error) {
	s.log.Error("failed to persist message",
		"kind", kind,
		"conversation_id", msg.ConversationID,
		"client_id", msg.ClientID,
		"error", cause,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := deadletter.Entry{
		Kind:           kind,
		ConversationID: msg.ConversationID,
		ClientID:       msg.ClientID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		Error:          cause.Error(),
		FailedAt:       time.Now().UTC(),
	}
	if err := s.deadLetter.Record(ctx, entry); err != nil {
		s.log.Warn("failed to record dead-letter entry", "kind", kind, "error", err)
	}
}
