package model

import "time"

// Message is one turn of a chat session.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a chat transcript plus bookkeeping metadata. It lives in the
// hot tier (Redis) while active and is mirrored into the cold tier on a
// background schedule for durability.
type Session struct {
	SessionID    string            `json:"session_id"`
	Messages     []Message         `json:"messages"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	ArchivedAt   *time.Time        `json:"archived_at,omitempty"`
}
