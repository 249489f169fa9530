package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yun-ni-2024/ai-assistant-app/internal/model/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/store"
)

var (
	ErrEmptyMessage    = errors.New("user message is required")
	ErrSessionNotFound = errors.New("session not found")
)

// maxTitleLength bounds the session title derived from the first message.
const maxTitleLength = 40

// Service encapsulates conversation state management over the store.
type Service struct {
	store store.Store
}

// NewService 创建基于持久化存储的会话服务。
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// EnsureSession returns the existing session or creates one titled after the
// opening message.
func (s *Service) EnsureSession(ctx context.Context, sessionID, firstMessage string) (chat.Session, error) {
	if sessionID != "" {
		session, err := s.store.GetSession(ctx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			return chat.Session{}, ErrSessionNotFound
		}
		if err != nil {
			return chat.Session{}, fmt.Errorf("failed to load session: %w", err)
		}
		return session, nil
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		Title:     deriveTitle(firstMessage),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return chat.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// RecordTurn persists the user message and an empty assistant placeholder.
// The placeholder is mutated exactly once when the stream finalizes.
func (s *Service) RecordTurn(ctx context.Context, sessionID, userMessage string) (chat.Message, chat.Message, error) {
	if strings.TrimSpace(userMessage) == "" {
		return chat.Message{}, chat.Message{}, ErrEmptyMessage
	}

	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      chat.RoleUser,
		Content:   userMessage,
		CreatedAt: now,
	}
	placeholder := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   "",
		CreatedAt: now,
	}

	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return chat.Message{}, chat.Message{}, fmt.Errorf("failed to save user message: %w", err)
	}
	if err := s.store.AppendMessage(ctx, placeholder); err != nil {
		return chat.Message{}, chat.Message{}, fmt.Errorf("failed to save assistant placeholder: %w", err)
	}
	return userMsg, placeholder, nil
}

// FinalizeAssistant writes the accumulated text into the placeholder.
func (s *Service) FinalizeAssistant(ctx context.Context, messageID, content string) error {
	if err := s.store.UpdateMessageContent(ctx, messageID, content); err != nil {
		return fmt.Errorf("failed to finalize assistant message: %w", err)
	}
	return nil
}

// LoadTranscript returns stored messages for the session in creation order.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	messages, err := s.store.ListMessagesOrdered(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	return messages, nil
}

// ListSessions lists all sessions for the history surface.
func (s *Service) ListSessions(ctx context.Context) ([]chat.Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength])
	}
	if title == "" {
		title = "New Chat"
	}
	return title
}
