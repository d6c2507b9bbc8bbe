package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// CreateConversation creates an empty conversation. A blank title becomes "New Chat".
func (s *Service) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
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
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	conversations, err := s.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// GetConversation returns a conversation with its messages in creation order.
func (s *Service) GetConversation(ctx context.Context, id string) (*domain.ConversationDetail, error) {
	conv, err := s.lookupConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	views := make([]domain.MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, domain.NewMessageView(m))
	}
	return &domain.ConversationDetail{Conversation: *conv, Messages: views}, nil
}

func (s *Service) RenameConversation(ctx context.Context, id, title string) (*domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrConversationNotFound
	}

	found, err := s.store.UpdateConversationTitle(ctx, id, title)
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	if !found {
		return nil, ErrConversationNotFound
	}
	return s.lookupConversation(ctx, id)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrConversationNotFound
	}
	found, err := s.store.DeleteConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if !found {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteAllConversations clears every conversation and message.
func (s *Service) DeleteAllConversations(ctx context.Context) error {
	if err := s.store.DeleteAllConversations(ctx); err != nil {
		return fmt.Errorf("failed to delete conversations: %w", err)
	}
	return nil
}

func (s *Service) lookupConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrConversationNotFound
	}
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}
