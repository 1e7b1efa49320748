// ABOUTME: Represents a single live participant connection and its room memberships
// ABOUTME: Identity is bound once at admission and never mutated afterwards

package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/helplane/helplane/internal/auth"
)

// Transport abstracts the duplex channel under a connection. The production
// implementation wraps a websocket; tests substitute fakes.
type Transport interface {
	// Send writes one serialized frame. Implementations must be safe for
	// concurrent use, since relayed broadcasts and direct replies can race.
	Send(data []byte) error
	// Ready reports whether the channel is open and able to accept sends.
	Ready() bool
	// Close tears down the channel.
	Close() error
}

// Conn is one live connection of an authenticated participant. The same user
// may hold several connections (browser tabs); each gets its own Conn.
type Conn struct {
	id        string
	identity  auth.Identity
	transport Transport

	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewConn binds an identity to a transport. The identity is fixed for the
// life of the connection.
func NewConn(identity auth.Identity, transport Transport) *Conn {
	return &Conn{
		id:        uuid.New().String(),
		identity:  identity,
		transport: transport,
		rooms:     make(map[string]struct{}),
	}
}

// ID returns the unique connection ID (distinct from the user ID).
func (c *Conn) ID() string {
	return c.id
}

// Identity returns the authenticated identity bound at admission.
func (c *Conn) Identity() auth.Identity {
	return c.identity
}

// Ready reports whether the underlying transport accepts sends.
func (c *Conn) Ready() bool {
	return c.transport.Ready()
}

// Send writes a serialized frame to the transport.
func (c *Conn) Send(data []byte) error {
	return c.transport.Send(data)
}

// InRoom reports whether this connection has joined the conversation.
func (c *Conn) InRoom(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[conversationID]
	return ok
}

// Rooms returns a snapshot of the conversation IDs this connection has joined.
func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

func (c *Conn) addRoom(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[conversationID] = struct{}{}
}

func (c *Conn) removeRoom(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, conversationID)
}
