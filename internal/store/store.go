package store

import (
	"context"
	"errors"

	"github.com/yun-ni-2024/ai-assistant-app/internal/model/chat"
)

// ErrNotFound is returned when a session or message id has no record.
var ErrNotFound = errors.New("record not found")

// Store 持久化会话与消息记录。
type Store interface {
	CreateSession(ctx context.Context, session chat.Session) error
	GetSession(ctx context.Context, id string) (chat.Session, error)
	ListSessions(ctx context.Context) ([]chat.Session, error)
	AppendMessage(ctx context.Context, message chat.Message) error
	UpdateMessageContent(ctx context.Context, id, content string) error
	ListMessagesOrdered(ctx context.Context, sessionID string) ([]chat.Message, error)
}
