// ABOUTME: Fans a serialized frame out to every ready connection in a room
// ABOUTME: Fire-and-forget: no retry, no per-recipient queueing

package session

import (
	"log/slog"
)

// Relay broadcasts frames to room members. Delivery is best-effort: members
// whose transport is not ready are skipped, and send failures are logged and
// otherwise ignored.
type Relay struct {
	directory *Directory
	logger    *slog.Logger
}

// NewRelay creates a Relay over the given directory. Pass nil logger for the
// default.
func NewRelay(directory *Directory, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		directory: directory,
		logger:    logger.With("component", "relay"),
	}
}

// Broadcast sends payload to every member of the conversation's room whose
// transport is ready, skipping exclude (usually the sender). The payload is
// serialized once by the caller.
func (r *Relay) Broadcast(conversationID string, payload []byte, exclude *Conn) {
	for _, conn := range r.directory.Members(conversationID) {
		if conn == exclude {
			continue
		}
		if !conn.Ready() {
			continue
		}
		if err := conn.Send(payload); err != nil {
			r.logger.Warn("broadcast send failed",
				"conversation_id", conversationID,
				"conn_id", conn.ID(),
				"error", err)
		}
	}
}
