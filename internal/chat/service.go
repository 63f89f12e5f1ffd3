// ABOUTME: Chat service is the single path between the UI, the session store and the responder
// ABOUTME: Records the user turn first, then asks the responder, then records the reply

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/coven-chat/internal/responder"
	"github.com/2389/coven-chat/internal/store"
)

// ErrEmptyMessage is returned when a user submits blank text
var ErrEmptyMessage = errors.New("message is empty")

// StorageError reports a failure reading or writing the session store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ResponderError reports a failure of the reply backend
type ResponderError struct {
	Err error
}

func (e *ResponderError) Error() string {
	return fmt.Sprintf("could not get a reply: %v", e.Err)
}

func (e *ResponderError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the session does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// Service coordinates session storage and reply generation.
type Service struct {
	store     store.Store
	responder responder.Responder
	logger    *slog.Logger
}

// New creates a new chat Service
func New(s store.Store, r responder.Responder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     s,
		responder: r,
		logger:    logger.With("component", "chat"),
	}
}

const opAppendUser = "append user message"

// UserMessageSaved reports whether a failed Send had already stored the
// user's message. Repeating the send after a false result loses nothing.
func UserMessageSaved(err error) bool {
	if errors.Is(err, ErrEmptyMessage) {
		return false
	}
	var storeErr *StorageError
	if errors.As(err, &storeErr) && storeErr.Op == opAppendUser {
		return false
	}
	return true
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// NewSession creates an empty session
func (s *Service) NewSession(ctx context.Context) (*store.Session, error) {
	session, err := s.store.CreateSession(ctx)
	if err != nil {
		return nil, storageErr("create session", err)
	}
	s.logger.Info("session created", "session_id", session.ID)
	return session, nil
}

// ListSessions returns every session, newest first
func (s *Service) ListSessions(ctx context.Context) ([]*store.Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

// Session returns a single session's metadata
func (s *Service) Session(ctx context.Context, id string) (*store.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return session, nil
}

// Transcript returns the messages of a session in the order they were sent
func (s *Service) Transcript(ctx context.Context, id string) ([]*store.Message, error) {
	msgs, err := s.store.LoadSession(ctx, id)
	if err != nil {
		return nil, storageErr("load session", err)
	}
	return msgs, nil
}

// DeleteSession removes a session and its messages
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return storageErr("delete session", err)
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// Send records a user message, asks the responder for a reply with the full
// transcript, and records the reply.
//
// The user message is saved before the responder is called, so it is kept
// even when the responder fails; in that case a *ResponderError is returned.
func (s *Service) Send(ctx context.Context, sessionID, text string) (*store.Message, error) {
	// Stored as typed; leading indentation matters for pasted code
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	// 1. Record the user turn first
	userMsg, err := s.store.AppendMessage(ctx, sessionID, store.RoleUser, text)
	if err != nil {
		return nil, storageErr(opAppendUser, err)
	}

	s.logger.Debug("user message recorded", "session_id", sessionID, "message_id", userMsg.ID, "seq", userMsg.Seq)

	// 2. Ask the responder with everything said so far
	transcript, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("load session", err)
	}

	reply, err := s.responder.Respond(ctx, toTurns(transcript))
	if err != nil {
		s.logger.Warn("responder failed", "session_id", sessionID, "responder", s.responder.Name(), "error", err)
		return nil, &ResponderError{Err: err}
	}

	// 3. Record the reply
	assistantMsg, err := s.store.AppendMessage(ctx, sessionID, store.RoleAssistant, reply)
	if err != nil {
		return nil, storageErr("append assistant message", err)
	}

	s.logger.Debug("assistant message recorded", "session_id", sessionID, "message_id", assistantMsg.ID, "seq", assistantMsg.Seq)
	return assistantMsg, nil
}

func toTurns(msgs []*store.Message) []responder.Turn {
	turns := make([]responder.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = responder.Turn{Role: string(m.Role), Content: m.Content}
	}
	return turns
}
