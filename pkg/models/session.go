package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a persisted conversation between one user and the engine.
// A session may be bound to at most one datasource; binding is permanent
// for the life of the session.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	UserID       string     `json:"user_id"`
	DatasourceID *uuid.UUID `json:"datasource_id,omitempty"`
	Title        string     `json:"title"`
	Archived     bool       `json:"archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn in a session's history. Immutable once created.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	// IsError marks assistant messages that report a failure; they are
	// excluded from conversation windows so the model never sees them.
	IsError      bool       `json:"is_error"`
	GeneratedSQL *string    `json:"generated_sql,omitempty"`
	QueryID      *uuid.UUID `json:"query_id,omitempty"`
	DashboardID  *uuid.UUID `json:"dashboard_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// WindowEntry is one entry of a conversation window, already truncated.
type WindowEntry struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ConversationWindow is the bounded, truncated slice of history sent to the
// generation service. Derived, never persisted.
type ConversationWindow []WindowEntry
