// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session   // keyed by session ID
	order    []string              // session IDs in creation order
	messages map[string][]*Message // keyed by session ID

	// Err, when set, is returned by every operation
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
	}
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)

	result := *s
	return &result, nil
}

// GetSession retrieves a session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshot(s), nil
}

// snapshot copies a session and fills in its derived fields. Caller holds mu.
func (m *MockStore) snapshot(s *Session) *Session {
	result := *s
	msgs := m.messages[s.ID]
	result.MessageCount = len(msgs)
	for _, msg := range msgs {
		if msg.Role == RoleUser {
			result.Title = titleFromContent(msg.Content)
			break
		}
	}
	return &result
}

// ListSessions returns sessions newest first.
func (m *MockStore) ListSessions(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	sessions := make([]*Session, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		sessions = append(sessions, m.snapshot(m.sessions[m.order[i]]))
	}
	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// AppendMessage appends a message to a session.
func (m *MockStore) AppendMessage(ctx context.Context, sessionID string, role Role, content string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}

	msg := &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Seq:       int64(len(m.messages[sessionID]) + 1),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)

	result := *msg
	return &result, nil
}

// LoadSession returns a copy of a session's messages in order.
func (m *MockStore) LoadSession(ctx context.Context, sessionID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}

	msgs := m.messages[sessionID]
	result := make([]*Message, len(msgs))
	for i, msg := range msgs {
		c := *msg
		result[i] = &c
	}
	return result, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
