// ABOUTME: In-memory per-conversation buffer of not-yet-durable messages
// ABOUTME: Owns the closing flag that seals a conversation against sends during flush

package session

import (
	"errors"
	"sync"

	"github.com/helplane/helplane/internal/store"
)

// ErrClosing is returned by Append while a conversation is being closed:
// the window between draining the buffer and persisting the closed status
// must not accept new messages, or they would never be flushed.
var ErrClosing = errors.New("conversation is closing")

// Buffer holds the ordered, not-yet-durable messages of each conversation.
// Sequences are allocated on first join and removed at flush/close.
type Buffer struct {
	mu      sync.Mutex
	pending map[string][]*store.Message
	closing map[string]struct{}
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		pending: make(map[string][]*store.Message),
		closing: make(map[string]struct{}),
	}
}

// Ensure allocates an empty sequence for the conversation if none exists.
func (b *Buffer) Ensure(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[conversationID]; !ok {
		b.pending[conversationID] = nil
	}
}

// Append adds a message to the conversation's sequence, creating it if
// absent. Returns ErrClosing once BeginClose has sealed the conversation.
func (b *Buffer) Append(conversationID string, msg *store.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, sealed := b.closing[conversationID]; sealed {
		return ErrClosing
	}
	b.pending[conversationID] = append(b.pending[conversationID], msg)
	return nil
}

// BeginClose seals the conversation: subsequent Appends fail with ErrClosing
// until EndClose or Drop. Returns ErrClosing if a close is already in
// progress, so two racing closers cannot both drain.
func (b *Buffer) BeginClose(conversationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, sealed := b.closing[conversationID]; sealed {
		return ErrClosing
	}
	b.closing[conversationID] = struct{}{}
	return nil
}

// EndClose lifts the seal without touching the buffered sequence. Called when
// a close attempt fails after BeginClose.
func (b *Buffer) EndClose(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.closing, conversationID)
}

// Drain atomically returns and clears the conversation's sequence.
func (b *Buffer) Drain(conversationID string) []*store.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.pending[conversationID]
	delete(b.pending, conversationID)
	return msgs
}

// Restore puts a drained sequence back at the head of the buffer, ahead of
// anything appended since. Used when the flush insert fails and the close is
// abandoned.
func (b *Buffer) Restore(conversationID string, msgs []*store.Message) {
	if len(msgs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[conversationID] = append(msgs, b.pending[conversationID]...)
}

// Drop removes the conversation's sequence and its closing flag. Called once
// a close has fully succeeded.
func (b *Buffer) Drop(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, conversationID)
	delete(b.closing, conversationID)
}

// Len returns the number of buffered messages for a conversation.
func (b *Buffer) Len(conversationID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[conversationID])
}

// Has reports whether a sequence (possibly empty) exists for the conversation.
func (b *Buffer) Has(conversationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[conversationID]
	return ok
}

// DrainAll atomically returns and clears every non-empty sequence, keyed by
// conversation ID. Used for the best-effort flush at graceful shutdown.
func (b *Buffer) DrainAll() map[string][]*store.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]*store.Message)
	for id, msgs := range b.pending {
		if len(msgs) > 0 {
			out[id] = msgs
		}
	}
	b.pending = make(map[string][]*store.Message)
	return out
}
