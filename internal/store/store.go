// ABOUTME: Store interface and data types for coven-chat persistence
// ABOUTME: Defines Session, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned when a requested session does not exist
var ErrNotFound = errors.New("session not found")

// ErrInvalidRole is returned when a message role is not user or assistant
var ErrInvalidRole = errors.New("invalid message role")

// Role identifies who authored a message
type Role string

// Message roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session represents one chat conversation.
// Title and MessageCount are derived from the session's messages when listing.
type Session struct {
	ID           string
	Title        string
	MessageCount int
	CreatedAt    time.Time
}

// Message represents a single turn within a session.
// Seq is 1-based and strictly increasing in insertion order.
type Message struct {
	ID        string
	SessionID string
	Seq       int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Store defines the interface for session and message persistence
type Store interface {
	// Sessions
	CreateSession(ctx context.Context) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Messages
	AppendMessage(ctx context.Context, sessionID string, role Role, content string) (*Message, error)
	LoadSession(ctx context.Context, sessionID string) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}

// maxTitleRunes bounds the length of a derived session title
const maxTitleRunes = 60

// titleFromContent builds a one-line title from the first user message.
func titleFromContent(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes-1])) + "…"
}
