// ABOUTME: Store interface and data types for helplane persistence
// ABOUTME: Defines User, Conversation, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness or
// state-transition constraint (duplicate email, candidate with an active
// conversation, illegal status transition, rebinding an agent).
var ErrConflict = errors.New("conflict")

// Role identifies what a user is allowed to do on the platform.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleAgent      Role = "agent"
	RoleCandidate  Role = "candidate"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAgent, RoleCandidate:
		return true
	}
	return false
}

// Status is the lifecycle state of a conversation. Transitions are
// monotonic: open -> assigned -> closed, never backwards.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssigned Status = "assigned"
	StatusClosed   Status = "closed"
)

// User is a platform account. PasswordHash is a bcrypt hash and is never
// serialized to clients.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	SupervisorID string // set for agents, empty otherwise
	CreatedAt    time.Time
}

// Conversation is the durable conversation record. AgentID is empty until a
// supervisor assigns an agent, and is set at most once.
type Conversation struct {
	ID           string
	CandidateID  string
	SupervisorID string
	AgentID      string
	Status       Status
	CreatedAt    time.Time
}

// Message is a durable chat message. Messages are immutable and are created
// only in batch when a conversation's buffer is flushed at close.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderRole     Role
	Content        string
	CreatedAt      time.Time
}

// SupervisorStats is one row of the admin analytics report.
type SupervisorStats struct {
	SupervisorID         string
	SupervisorName       string
	Agents               int
	ConversationsHandled int
}

// Store defines the interface for user, conversation and message persistence.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsersByRole(ctx context.Context, role Role) ([]*User, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// FindActiveConversationByCandidate returns the candidate's open or
	// assigned conversation, or ErrNotFound if none exists.
	FindActiveConversationByCandidate(ctx context.Context, candidateID string) (*Conversation, error)
	// UpdateConversationStatus transitions a conversation from one status to
	// another. Returns ErrConflict if the current status does not match from,
	// which is how monotonicity is enforced against racing writers.
	UpdateConversationStatus(ctx context.Context, id string, from, to Status) error
	// BindAgent sets the agent on a conversation. Returns ErrConflict if an
	// agent is already bound.
	BindAgent(ctx context.Context, id, agentID string) error

	// Messages
	// InsertMessages persists a batch in a single transaction, preserving
	// slice order.
	InsertMessages(ctx context.Context, msgs []*Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Analytics
	CountClosedByAgents(ctx context.Context, agentIDs []string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
