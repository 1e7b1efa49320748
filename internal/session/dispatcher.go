// ABOUTME: Validates inbound frames and routes them to the four event handlers
// ABOUTME: Authorization runs before any mutation; errors go only to the requester

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helplane/helplane/internal/conversation"
	"github.com/helplane/helplane/internal/metrics"
	"github.com/helplane/helplane/internal/store"
)

// Dispatcher owns the real-time session state: the connection directory, the
// message buffer, and the relay. It is constructed once at startup and
// shared by every connection's read loop. Per-connection ordering comes from
// each connection having a single read loop; cross-connection interleaving
// is tamed by the directory/buffer locks and the buffer's closing flag.
type Dispatcher struct {
	convs        *conversation.Service
	store        store.Store
	directory    *Directory
	buffer       *Buffer
	relay        *Relay
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewDispatcher wires a dispatcher from its collaborators. Pass nil logger
// for the default.
func NewDispatcher(convs *conversation.Service, st store.Store, directory *Directory, buffer *Buffer, relay *Relay, storeTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		convs:        convs,
		store:        st,
		directory:    directory,
		buffer:       buffer,
		relay:        relay,
		storeTimeout: storeTimeout,
		logger:       logger.With("component", "dispatcher"),
	}
}

// Directory exposes the connection directory (used by transports and tests).
func (d *Dispatcher) Directory() *Directory {
	return d.directory
}

// HandleFrame processes one inbound frame from a connection. Any error is
// replied to that connection only; the method itself never fails.
func (d *Dispatcher) HandleFrame(ctx context.Context, conn *Conn, raw []byte) {
	cmd, werr := ParseCommand(raw)
	if werr != nil {
		metrics.FramesTotal.WithLabelValues("invalid", "rejected").Inc()
		d.replyError(conn, werr)
		return
	}

	switch c := cmd.(type) {
	case JoinCommand:
		werr = d.handleJoin(ctx, conn, c)
	case SendCommand:
		werr = d.handleSend(ctx, conn, c)
	case LeaveCommand:
		werr = d.handleLeave(conn, c)
	case CloseCommand:
		werr = d.handleClose(ctx, conn, c)
	}

	if werr != nil {
		metrics.FramesTotal.WithLabelValues(cmd.Event(), "rejected").Inc()
		d.replyError(conn, werr)
		return
	}
	metrics.FramesTotal.WithLabelValues(cmd.Event(), "ok").Inc()
}

// Disconnect removes a dropped connection from every room it had joined.
// Buffers are left alone: unflushed messages belong to the conversation,
// not the connection.
func (d *Dispatcher) Disconnect(conn *Conn) {
	d.directory.RemoveConn(conn)
	metrics.RoomsActive.Set(float64(d.directory.Rooms()))
	d.logger.Debug("connection removed",
		"conn_id", conn.ID(),
		"user_id", conn.Identity().ID)
}

func (d *Dispatcher) handleJoin(ctx context.Context, conn *Conn, cmd JoinCommand) *WireError {
	sctx, cancel := d.storeContext(ctx)
	defer cancel()

	identity := conn.Identity()
	conv, err := d.convs.AuthorizeJoin(sctx, identity, cmd.ConversationID)
	if err != nil {
		d.logRejection("join", conn, cmd.ConversationID, err)
		return wireErrorFor(err)
	}

	// The bound agent joining an open conversation assigns it as a side
	// effect. Idempotent if another join got there first.
	status := conv.Status
	if identity.Role == store.RoleAgent && conv.Status == store.StatusOpen {
		if err := d.convs.MarkAssigned(sctx, cmd.ConversationID); err != nil {
			d.logRejection("join", conn, cmd.ConversationID, err)
			return wireErrorFor(err)
		}
		status = store.StatusAssigned
	}

	d.directory.Join(cmd.ConversationID, conn)
	d.buffer.Ensure(cmd.ConversationID)

	// A close that finishes between the authorization check and Join has
	// already torn down this room; the Join above would quietly recreate it
	// for a closed conversation. Re-check after joining and back out.
	if _, err := d.convs.AuthorizeJoin(sctx, identity, cmd.ConversationID); err != nil {
		d.directory.Leave(cmd.ConversationID, conn)
		if errors.Is(err, conversation.ErrAlreadyClosed) && !d.directory.HasRoom(cmd.ConversationID) {
			d.buffer.Drop(cmd.ConversationID)
		}
		metrics.RoomsActive.Set(float64(d.directory.Rooms()))
		d.logRejection("join", conn, cmd.ConversationID, err)
		return wireErrorFor(err)
	}
	metrics.RoomsActive.Set(float64(d.directory.Rooms()))

	d.reply(conn, EventJoinedConversation, map[string]any{
		"conversationId": cmd.ConversationID,
		"status":         string(status),
	})
	return nil
}

func (d *Dispatcher) handleSend(ctx context.Context, conn *Conn, cmd SendCommand) *WireError {
	// Membership is checked against the connection's own set, not the
	// durable record: joining is what grants send.
	if !conn.InRoom(cmd.ConversationID) {
		return notAllowedError("you have not joined this conversation")
	}

	identity := conn.Identity()
	msg := &store.Message{
		ConversationID: cmd.ConversationID,
		SenderID:       identity.ID,
		SenderRole:     identity.Role,
		Content:        cmd.Content,
		CreatedAt:      time.Now().UTC(),
	}

	if err := d.buffer.Append(cmd.ConversationID, msg); err != nil {
		return wireErrorFor(err)
	}
	metrics.MessagesBuffered.Inc()

	d.relay.Broadcast(cmd.ConversationID, marshalFrame(EventNewMessage, map[string]any{
		"conversationId": msg.ConversationID,
		"senderId":       msg.SenderID,
		"senderRole":     string(msg.SenderRole),
		"content":        msg.Content,
		"createdAt":      msg.CreatedAt.Format(time.RFC3339Nano),
	}), conn)
	return nil
}

func (d *Dispatcher) handleLeave(conn *Conn, cmd LeaveCommand) *WireError {
	if !conn.InRoom(cmd.ConversationID) {
		return notAllowedError("you are not in this conversation")
	}

	d.directory.Leave(cmd.ConversationID, conn)
	metrics.RoomsActive.Set(float64(d.directory.Rooms()))

	d.reply(conn, EventLeftConversation, map[string]any{
		"conversationId": cmd.ConversationID,
	})
	return nil
}

func (d *Dispatcher) handleClose(ctx context.Context, conn *Conn, cmd CloseCommand) *WireError {
	sctx, cancel := d.storeContext(ctx)
	defer cancel()

	identity := conn.Identity()
	if _, err := d.convs.AuthorizeAgentClose(sctx, identity, cmd.ConversationID); err != nil {
		d.logRejection("close", conn, cmd.ConversationID, err)
		return wireErrorFor(err)
	}

	// Seal before draining: a send arriving between drain and the status
	// update would otherwise land in a buffer nothing will ever flush.
	if err := d.buffer.BeginClose(cmd.ConversationID); err != nil {
		return wireErrorFor(err)
	}

	msgs := d.buffer.Drain(cmd.ConversationID)
	for _, msg := range msgs {
		msg.ID = uuid.New().String()
	}

	if err := d.store.InsertMessages(sctx, msgs); err != nil {
		// Put the batch back and lift the seal so a retry can flush it.
		d.buffer.Restore(cmd.ConversationID, msgs)
		d.buffer.EndClose(cmd.ConversationID)
		d.logger.Error("message flush failed",
			"conversation_id", cmd.ConversationID,
			"messages", len(msgs),
			"error", err)
		return internalError()
	}

	if err := d.convs.MarkClosed(sctx, cmd.ConversationID, store.StatusAssigned); err != nil {
		// The batch is durable but the status is not: inconsistent durable
		// state that nothing self-heals. Loud log for operator visibility.
		d.buffer.EndClose(cmd.ConversationID)
		d.logger.Error("conversation close failed after message flush; durable state inconsistent",
			"conversation_id", cmd.ConversationID,
			"messages_persisted", len(msgs),
			"error", err)
		return internalError()
	}

	metrics.MessagesFlushed.Add(float64(len(msgs)))
	metrics.MessagesBuffered.Sub(float64(len(msgs)))

	d.relay.Broadcast(cmd.ConversationID, marshalFrame(EventConversationClosed, map[string]any{
		"conversationId": cmd.ConversationID,
	}), conn)

	d.directory.DropRoom(cmd.ConversationID)
	d.buffer.Drop(cmd.ConversationID)
	metrics.RoomsActive.Set(float64(d.directory.Rooms()))

	d.logger.Info("conversation closed over session channel",
		"conversation_id", cmd.ConversationID,
		"agent_id", identity.ID,
		"messages_flushed", len(msgs))

	d.reply(conn, EventClosedConversation, map[string]any{
		"conversationId": cmd.ConversationID,
	})
	return nil
}

// FlushAll batch-persists every remaining buffered message. Called during
// graceful shutdown when session.flush_on_shutdown is enabled; failures are
// logged per conversation and do not stop the remaining flushes.
func (d *Dispatcher) FlushAll(ctx context.Context) {
	for conversationID, msgs := range d.buffer.DrainAll() {
		for _, msg := range msgs {
			msg.ID = uuid.New().String()
		}
		sctx, cancel := d.storeContext(ctx)
		err := d.store.InsertMessages(sctx, msgs)
		cancel()
		if err != nil {
			d.logger.Error("shutdown flush failed",
				"conversation_id", conversationID,
				"messages", len(msgs),
				"error", err)
			continue
		}
		metrics.MessagesFlushed.Add(float64(len(msgs)))
		metrics.MessagesBuffered.Sub(float64(len(msgs)))
		d.logger.Info("shutdown flush",
			"conversation_id", conversationID,
			"messages", len(msgs))
	}
}

// reply sends a frame to a single connection, logging failures.
func (d *Dispatcher) reply(conn *Conn, event string, data any) {
	if err := conn.Send(marshalFrame(event, data)); err != nil {
		d.logger.Debug("reply send failed",
			"conn_id", conn.ID(),
			"event", event,
			"error", err)
	}
}

// replyError sends an ERROR frame to the originating connection only.
func (d *Dispatcher) replyError(conn *Conn, werr *WireError) {
	d.reply(conn, EventError, werr)
}

func (d *Dispatcher) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.storeTimeout)
}

func (d *Dispatcher) logRejection(op string, conn *Conn, conversationID string, err error) {
	d.logger.Debug("event rejected",
		"op", op,
		"conn_id", conn.ID(),
		"user_id", conn.Identity().ID,
		"role", string(conn.Identity().Role),
		"conversation_id", conversationID,
		"error", err)
}
