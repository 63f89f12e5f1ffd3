// Package store provides persistent storage for chat sessions using SQLite.
//
// # Architecture
//
// The Store interface covers the two entities the application persists:
//
//   - Session: one conversation, identified by a generated UUID
//   - Message: one turn (user or assistant) appended to a session
//
// SQLiteStore implements Store on database/sql. MockStore is an in-memory
// implementation with the same semantics for unit tests.
//
// # Ordering
//
// Each message carries a 1-based Seq assigned by the INSERT that stores it.
// LoadSession orders by Seq, so a transcript always reads back in the order
// it was appended. ListSessions orders by creation time, newest first.
//
// # SQLite Configuration
//
// Two drivers are supported:
//
//   - DriverModernc ("sqlite"): modernc.org/sqlite, pure Go, the default
//   - DriverCGO ("sqlite3"): github.com/mattn/go-sqlite3, requires cgo
//
// Pragmas are set on every connection through the DSN:
//
//	foreign_keys=ON
//	busy_timeout=5000
//	journal_mode=WAL (file databases only)
//
// Database file locations:
//
//   - Default: ~/.local/share/coven-chat/chat.db
//   - Testing: t.TempDir() files or MemoryPath
//
// # Error Handling
//
//   - ErrNotFound: the session does not exist
//   - ErrInvalidRole: a message role other than user or assistant
//
// All other failures are wrapped with context and returned as-is.
package store
