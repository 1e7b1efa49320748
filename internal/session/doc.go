// ABOUTME: Package doc for the real-time session layer
// ABOUTME: Directory, buffer, relay, and dispatcher behind a transport-agnostic Conn

// Package session implements the real-time layer of the gateway: live
// connections grouped into per-conversation rooms, an in-memory message
// buffer that defers persistence until a conversation closes, and the
// dispatcher that turns validated wire frames into conversation operations.
//
// The package is transport-agnostic. A connection is anything satisfying
// Transport; the HTTP layer adapts websockets onto it, and tests use
// in-memory fakes. All state lives in three structures guarded by their own
// locks:
//
//   - Directory: room membership, conversation ID -> set of connections.
//   - Buffer: pending messages per conversation, plus a closing flag that
//     seals a conversation against late sends while its buffer is being
//     flushed.
//   - Relay: fan-out of a frame to a room, optionally excluding the sender.
//
// Messages are durable only after a close drains the buffer into a single
// store batch. A crash before close loses the buffered transcript; that is
// the accepted trade for not touching the database on every message.
package session
