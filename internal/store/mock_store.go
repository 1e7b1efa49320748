// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	users         map[string]*User         // keyed by user ID
	usersByEmail  map[string]string        // email -> user ID
	conversations map[string]*Conversation // keyed by conversation ID
	messages      map[string][]*Message    // keyed by conversation ID

	// FailInsertMessages and FailUpdateStatus force the corresponding calls
	// to return the given error, for exercising persistence failure paths.
	FailInsertMessages error
	FailUpdateStatus   error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[string]*User),
		usersByEmail:  make(map[string]string),
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByEmail[user.Email]; exists {
		return ErrConflict
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	m.usersByEmail[u.Email] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m.users[id]
	return &copied, nil
}

// ListUsersByRole returns users with the given role, ordered by name.
func (m *MockStore) ListUsersByRole(ctx context.Context, role Role) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for _, u := range m.users {
		if u.Role == role {
			copied := *u
			users = append(users, &copied)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// FindActiveConversationByCandidate returns the candidate's open or assigned
// conversation.
func (m *MockStore) FindActiveConversationByCandidate(ctx context.Context, candidateID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.conversations {
		if c.CandidateID == candidateID && (c.Status == StatusOpen || c.Status == StatusAssigned) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateConversationStatus transitions status conditionally on the prior value.
func (m *MockStore) UpdateConversationStatus(ctx context.Context, id string, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdateStatus != nil {
		return m.FailUpdateStatus
	}

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrConflict
	}
	c.Status = to
	return nil
}

// BindAgent sets the agent on a conversation, at most once.
func (m *MockStore) BindAgent(ctx context.Context, id, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if c.AgentID != "" {
		return ErrConflict
	}
	c.AgentID = agentID
	return nil
}

// InsertMessages appends a batch of messages, preserving order.
func (m *MockStore) InsertMessages(ctx context.Context, msgs []*Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsertMessages != nil {
		return m.FailInsertMessages
	}

	for _, msg := range msgs {
		copied := *msg
		m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &copied)
	}
	return nil
}

// ListMessages returns messages for a conversation in insert order.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]*Message, len(msgs))
	for i, msg := range msgs {
		copied := *msg
		out[i] = &copied
	}
	return out, nil
}

// CountClosedByAgents counts closed conversations handled by the given agents.
func (m *MockStore) CountClosedByAgents(ctx context.Context, agentIDs []string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]bool, len(agentIDs))
	for _, id := range agentIDs {
		ids[id] = true
	}

	count := 0
	for _, c := range m.conversations {
		if c.Status == StatusClosed && ids[c.AgentID] {
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
