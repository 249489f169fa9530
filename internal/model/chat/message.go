package chat

import "time"

// Message roles. Assistant messages start as empty placeholders and are
// written exactly once when their stream finalizes.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message persists one turn half for history assembly and audit.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
