// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Provides session/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql
const (
	// DriverModernc is the pure Go driver (modernc.org/sqlite)
	DriverModernc = "sqlite"

	// DriverCGO is the cgo driver (github.com/mattn/go-sqlite3)
	DriverCGO = "sqlite3"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path using the pure Go driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDriver(DriverModernc, path)
}

// NewSQLiteStoreWithDriver creates a new SQLite store using the named driver.
// An empty driver selects DriverModernc.
func NewSQLiteStoreWithDriver(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != MemoryPath {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// dsn builds a data source name that applies the connection pragmas.
// Pragmas go in the DSN so that every pooled connection gets them.
func dsn(driver, path string) string {
	switch driver {
	case DriverCGO:
		q := "?_foreign_keys=on&_busy_timeout=5000"
		if path != MemoryPath {
			q += "&_journal_mode=WAL"
		}
		return path + q
	default:
		q := "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		if path != MemoryPath {
			q += "&_pragma=journal_mode(WAL)"
		}
		return path + q
	}
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chat_sessions_created
			ON chat_sessions(created_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE,
			CHECK (role IN ('user', 'assistant'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_session_seq
			ON messages(session_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateSession inserts a new session with a fresh ID and the current time.
func (s *SQLiteStore) CreateSession(ctx context.Context) (*Session, error) {
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO chat_sessions (id, created_at) VALUES (?, ?)`

	if _, err := s.db.ExecContext(ctx, query, session.ID, formatTime(session.CreatedAt)); err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID)
	return session, nil
}

// sessionColumns selects a session row with its derived listing fields
const sessionColumns = `
	s.id,
	s.created_at,
	(SELECT content FROM messages m
		WHERE m.session_id = s.id AND m.role = 'user'
		ORDER BY m.seq ASC LIMIT 1),
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var createdAtStr string
	var firstUser sql.NullString

	if err := row.Scan(&session.ID, &createdAtStr, &firstUser, &session.MessageCount); err != nil {
		return nil, err
	}

	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	session.CreatedAt = createdAt

	if firstUser.Valid {
		session.Title = titleFromContent(firstUser.String)
	}

	return &session, nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions s WHERE s.id = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	return session, nil
}

// ListSessions returns all sessions, most recently created first.
// Sessions created within the same instant are ordered newest insert first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM chat_sessions s
		ORDER BY s.created_at DESC, s.rowid DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session and, by cascade, its messages.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted session", "id", id)
	return nil
}

// AppendMessage appends one message to the end of a session.
// The sequence number is assigned in the same statement that checks the
// session exists, so concurrent appends can never reorder a transcript.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, role Role, content string) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO messages (id, session_id, seq, role, content, created_at)
		SELECT ?, s.id,
			COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = s.id), 0) + 1,
			?, ?, ?
		FROM chat_sessions s
		WHERE s.id = ?
		RETURNING seq
	`

	err := s.db.QueryRowContext(ctx, query,
		msg.ID,
		string(msg.Role),
		msg.Content,
		formatTime(msg.CreatedAt),
		sessionID,
	).Scan(&msg.Seq)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("appended message", "id", msg.ID, "session_id", sessionID, "seq", msg.Seq, "role", role)
	return msg, nil
}

// LoadSession returns every message of a session in insertion order.
// Returns ErrNotFound if the session doesn't exist; a session without
// messages yields an empty slice.
func (s *SQLiteStore) LoadSession(ctx context.Context, sessionID string) ([]*Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	query := `
		SELECT id, session_id, seq, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var role, createdAtStr string

		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Seq,
			&role,
			&msg.Content,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Role = Role(role)
		msg.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// timeLayout is fixed width so that stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
