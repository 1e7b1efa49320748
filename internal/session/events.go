// ABOUTME: Wire protocol frames and the validating parser for inbound events
// ABOUTME: Inbound frames become a closed set of typed commands, never inspected ad hoc

package session

import (
	"bytes"
	"encoding/json"
)

// Inbound event names.
const (
	EventJoinConversation  = "JOIN_CONVERSATION"
	EventSendMessage       = "SEND_MESSAGE"
	EventLeaveConversation = "LEAVE_CONVERSATION"
	EventCloseConversation = "CLOSE_CONVERSATION"
)

// Outbound event names.
const (
	EventJoinedConversation = "JOINED_CONVERSATION"
	EventNewMessage         = "NEW_MESSAGE"
	EventLeftConversation   = "LEFT_CONVERSATION"
	EventClosedConversation = "CLOSED_CONVERSATION" // reply to the closer
	EventConversationClosed = "CONVERSATION_CLOSED" // broadcast to the room
	EventError              = "ERROR"
)

// Command is the closed set of validated inbound events. Exactly one
// concrete type exists per recognized event name.
type Command interface {
	// Event returns the inbound event name the command was parsed from.
	Event() string
}

// JoinCommand requests membership in a conversation's room.
type JoinCommand struct {
	ConversationID string `json:"conversationId"`
}

// SendCommand appends a chat message to a joined conversation.
type SendCommand struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// LeaveCommand leaves a conversation's room.
type LeaveCommand struct {
	ConversationID string `json:"conversationId"`
}

// CloseCommand closes an assigned conversation (bound agent only).
type CloseCommand struct {
	ConversationID string `json:"conversationId"`
}

func (JoinCommand) Event() string  { return EventJoinConversation }
func (SendCommand) Event() string  { return EventSendMessage }
func (LeaveCommand) Event() string { return EventLeaveConversation }
func (CloseCommand) Event() string { return EventCloseConversation }

// envelope is the outer shape of every inbound frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseCommand validates an inbound frame and returns the typed command.
// Malformed JSON, a missing or unrecognized event, or non-object data all
// yield a WireError; each command additionally validates its own required
// fields.
func ParseCommand(raw []byte) (Command, *WireError) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, validationError("malformed frame")
	}
	if env.Event == "" {
		return nil, validationError("event required")
	}
	if !isJSONObject(env.Data) {
		return nil, validationError("data must be an object")
	}

	switch env.Event {
	case EventJoinConversation:
		var cmd JoinCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, validationError("malformed data")
		}
		if cmd.ConversationID == "" {
			return nil, validationError("conversationId required")
		}
		return cmd, nil

	case EventSendMessage:
		var cmd SendCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, validationError("malformed data")
		}
		if cmd.ConversationID == "" {
			return nil, validationError("conversationId required")
		}
		if cmd.Content == "" {
			return nil, validationError("content required")
		}
		return cmd, nil

	case EventLeaveConversation:
		var cmd LeaveCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, validationError("malformed data")
		}
		if cmd.ConversationID == "" {
			return nil, validationError("conversationId required")
		}
		return cmd, nil

	case EventCloseConversation:
		var cmd CloseCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, validationError("malformed data")
		}
		if cmd.ConversationID == "" {
			return nil, validationError("conversationId required")
		}
		return cmd, nil

	default:
		return nil, validationError("unknown event")
	}
}

// isJSONObject reports whether raw is a JSON object literal.
func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// marshalFrame builds an outbound frame. Marshal failures cannot happen for
// the payload types used here, so the error is swallowed after logging by
// callers that care.
func marshalFrame(event string, data any) []byte {
	out, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
	if err != nil {
		return []byte(`{"event":"ERROR","data":{"code":"INTERNAL","message":""}}`)
	}
	return out
}
