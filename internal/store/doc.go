// Package store provides persistent storage for helplane using SQLite.
//
// # Architecture
//
// The package exposes a single Store interface with two implementations:
//
//   - SQLiteStore: production implementation over modernc.org/sqlite
//   - MockStore: in-memory implementation for tests
//
// # Data Models
//
//   - User: platform account with a role (admin, supervisor, agent, candidate)
//     and, for agents, the supervisor they report to
//   - Conversation: durable conversation record with a monotonic status
//     (open -> assigned -> closed) and an at-most-once agent binding
//   - Message: immutable chat message, written only in batches when a
//     conversation's in-memory buffer is flushed at close
//
// # State Transitions
//
// Conversation status updates are conditional writes: UpdateConversationStatus
// takes the expected prior status and returns ErrConflict when the record has
// moved on. This keeps the open -> assigned -> closed ordering enforced at the
// storage layer rather than trusting callers. BindAgent works the same way for
// the agent binding.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on first open.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrConflict: uniqueness or state-transition constraint violated
package store
