package chat

import "time"

// Session groups the turns of one conversation. Created lazily on the
// first turn when the client does not supply an id; never deleted here.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
