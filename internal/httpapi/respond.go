// ABOUTME: JSON response envelope and HTTP status mapping for service errors
// ABOUTME: Every response is {success, data} or {success, message}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/helplane/helplane/internal/conversation"
	"github.com/helplane/helplane/internal/store"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// writeServiceError maps conversation and store errors onto HTTP statuses.
// Unrecognized errors become an opaque 500; the caller logs the original.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, conversation.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, "agent not found")
	case errors.Is(err, conversation.ErrNotAnAgent):
		writeError(w, http.StatusBadRequest, "user is not an agent")
	case errors.Is(err, conversation.ErrWrongSupervisor):
		writeError(w, http.StatusBadRequest, "agent does not belong to this supervisor")
	case errors.Is(err, conversation.ErrActiveConversation):
		writeError(w, http.StatusConflict, "candidate already has an active conversation")
	case errors.Is(err, conversation.ErrAlreadyAssigned):
		writeError(w, http.StatusConflict, "conversation already has an agent")
	case errors.Is(err, conversation.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, "conversation already closed")
	case errors.Is(err, conversation.ErrNotOpen):
		writeError(w, http.StatusConflict, "conversation is no longer open")
	case errors.Is(err, conversation.ErrNotAssigned):
		writeError(w, http.StatusConflict, "conversation not yet assigned")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting update")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}
