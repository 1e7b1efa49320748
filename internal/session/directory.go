// ABOUTME: In-memory mapping of conversation ID to the set of live connections (rooms)
// ABOUTME: Pure membership bookkeeping; authorization happens before anything reaches here

package session

import (
	"sync"
)

// Directory tracks which connections have joined which conversation rooms.
// Rooms are created lazily on first join and deleted when their last member
// leaves. Both sides of the relationship are kept consistent: the room's
// member set and each connection's own membership set.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

// Join adds a connection to a conversation's room, creating the room if it
// does not exist yet. Idempotent.
func (d *Directory) Join(conversationID string, conn *Conn) {
	d.mu.Lock()
	room, ok := d.rooms[conversationID]
	if !ok {
		room = make(map[*Conn]struct{})
		d.rooms[conversationID] = room
	}
	room[conn] = struct{}{}
	d.mu.Unlock()

	conn.addRoom(conversationID)
}

// Leave removes a connection from a conversation's room and from the
// connection's own membership set. The room is deleted once empty.
func (d *Directory) Leave(conversationID string, conn *Conn) {
	d.mu.Lock()
	if room, ok := d.rooms[conversationID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(d.rooms, conversationID)
		}
	}
	d.mu.Unlock()

	conn.removeRoom(conversationID)
}

// RemoveConn removes a connection from every room it has joined. Called on
// disconnect; must run unconditionally regardless of in-flight handlers.
func (d *Directory) RemoveConn(conn *Conn) {
	for _, conversationID := range conn.Rooms() {
		d.Leave(conversationID, conn)
	}
}

// Members returns a snapshot of the connections currently in a room.
func (d *Directory) Members(conversationID string) []*Conn {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[conversationID]
	if !ok {
		return nil
	}
	members := make([]*Conn, 0, len(room))
	for conn := range room {
		members = append(members, conn)
	}
	return members
}

// DropRoom deletes a room outright, removing the membership entry from every
// former member. Returns the former members. Used at conversation close.
func (d *Directory) DropRoom(conversationID string) []*Conn {
	d.mu.Lock()
	room, ok := d.rooms[conversationID]
	if ok {
		delete(d.rooms, conversationID)
	}
	d.mu.Unlock()

	if !ok {
		return nil
	}
	members := make([]*Conn, 0, len(room))
	for conn := range room {
		conn.removeRoom(conversationID)
		members = append(members, conn)
	}
	return members
}

// HasRoom reports whether a room currently exists for the conversation.
func (d *Directory) HasRoom(conversationID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[conversationID]
	return ok
}

// Rooms returns the number of live rooms.
func (d *Directory) Rooms() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
