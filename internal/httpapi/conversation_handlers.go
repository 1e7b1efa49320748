// ABOUTME: REST endpoints for the conversation lifecycle
// ABOUTME: Thin decode/authorize/respond wrappers over the conversation service

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helplane/helplane/internal/auth"
)

type createConversationRequest struct {
	SupervisorID string `json:"supervisorId"`
}

type assignRequest struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SupervisorID == "" {
		writeError(w, http.StatusBadRequest, "supervisorId required")
		return
	}

	conv, err := s.convs.Create(r.Context(), identity, req.SupervisorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toConversationView(conv))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conv, err := s.convs.Get(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toConversationView(conv))
}

func (s *Server) handleAssignConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agentId required")
		return
	}

	conv, err := s.convs.Assign(r.Context(), identity, chi.URLParam(r, "id"), req.AgentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toConversationView(conv))
}

// handleCloseConversation is the supervisor/admin close path: valid only
// while the conversation is still open. Agents close over the session
// channel, which also flushes the message buffer.
func (s *Server) handleCloseConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conv, err := s.convs.CloseBySupervisor(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toConversationView(conv))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := s.convs.Analytics(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toStatsViews(stats))
}
