// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			supervisor_id TEXT,
			created_at    DATETIME NOT NULL,

			CHECK (role IN ('admin', 'supervisor', 'agent', 'candidate'))
		);

		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
		CREATE INDEX IF NOT EXISTS idx_users_supervisor ON users(supervisor_id);

		CREATE TABLE IF NOT EXISTS conversations (
			id            TEXT PRIMARY KEY,
			candidate_id  TEXT NOT NULL,
			supervisor_id TEXT NOT NULL,
			agent_id      TEXT,
			status        TEXT NOT NULL,
			created_at    DATETIME NOT NULL,

			CHECK (status IN ('open', 'assigned', 'closed')),
			FOREIGN KEY (candidate_id) REFERENCES users(id),
			FOREIGN KEY (supervisor_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_candidate_status
			ON conversations(candidate_id, status);
		CREATE INDEX IF NOT EXISTS idx_conversations_agent_status
			ON conversations(agent_id, status);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			sender_role     TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      DATETIME NOT NULL,

			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// CreateUser inserts a new user. Returns ErrConflict on duplicate email.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	var supervisorID sql.NullString
	if user.SupervisorID != "" {
		supervisorID = sql.NullString{String: user.SupervisorID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, supervisor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), supervisorID, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, supervisor_id, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, supervisor_id, created_at
		FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListUsersByRole returns all users with the given role, ordered by name.
func (s *SQLiteStore) ListUsersByRole(ctx context.Context, role Role) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, role, supervisor_id, created_at
		FROM users WHERE role = ? ORDER BY name`, string(role))
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateConversation inserts a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	var agentID sql.NullString
	if conv.AgentID != "" {
		agentID = sql.NullString{String: conv.AgentID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, candidate_id, supervisor_id, agent_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.CandidateID, conv.SupervisorID, agentID, string(conv.Status), conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, candidate_id, supervisor_id, agent_id, status, created_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// FindActiveConversationByCandidate returns the candidate's open or assigned
// conversation, or ErrNotFound.
func (s *SQLiteStore) FindActiveConversationByCandidate(ctx context.Context, candidateID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, candidate_id, supervisor_id, agent_id, status, created_at
		FROM conversations
		WHERE candidate_id = ? AND status IN ('open', 'assigned')
		LIMIT 1`, candidateID)
	return scanConversation(row)
}

// UpdateConversationStatus transitions status from one value to another.
// The WHERE clause on the prior status makes the transition conditional, so a
// racing writer observes ErrConflict instead of silently reversing state.
func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, id string, from, to Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("updating conversation status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish missing conversation from wrong prior status
		if _, err := s.GetConversation(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// BindAgent sets the agent on a conversation, at most once.
func (s *SQLiteStore) BindAgent(ctx context.Context, id, agentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET agent_id = ? WHERE id = ? AND agent_id IS NULL`,
		agentID, id)
	if err != nil {
		return fmt.Errorf("binding agent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetConversation(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// InsertMessages persists a batch of messages in a single transaction,
// preserving slice order. A zero-length batch is a no-op.
func (s *SQLiteStore) InsertMessages(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		if _, err := stmt.ExecContext(ctx,
			msg.ID, msg.ConversationID, msg.SenderID, string(msg.SenderRole), msg.Content, msg.CreatedAt); err != nil {
			return fmt.Errorf("inserting message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}
	return nil
}

// ListMessages returns messages for a conversation in send order.
// A limit of 0 means no limit.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, sender_role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at, rowid`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.SenderRole = Role(role)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// CountClosedByAgents counts closed conversations handled by any of the given
// agents.
func (s *SQLiteStore) CountClosedByAgents(ctx context.Context, agentIDs []string) (int, error) {
	if len(agentIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(agentIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(agentIDs))
	for _, id := range agentIDs {
		args = append(args, id)
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE status = 'closed' AND agent_id IN (`+placeholders+`)`,
		args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting closed conversations: %w", err)
	}
	return count, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	var u User
	var role string
	var supervisorID sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &supervisorID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = Role(role)
	u.SupervisorID = supervisorID.String
	return &u, nil
}

func scanConversation(row scanner) (*Conversation, error) {
	var c Conversation
	var status string
	var agentID sql.NullString
	err := row.Scan(&c.ID, &c.CandidateID, &c.SupervisorID, &agentID, &status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	c.Status = Status(status)
	c.AgentID = agentID.String
	return &c, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
