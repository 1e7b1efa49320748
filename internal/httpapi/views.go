// ABOUTME: Wire representations of durable entities for REST responses
// ABOUTME: Password hashes never leave the store layer through these

package httpapi

import (
	"time"

	"github.com/helplane/helplane/internal/store"
)

type userView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	SupervisorID string `json:"supervisorId,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

func toUserView(u *store.User) userView {
	return userView{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		SupervisorID: u.SupervisorID,
		CreatedAt:    u.CreatedAt.Format(time.RFC3339),
	}
}

type conversationView struct {
	ID           string `json:"id"`
	CandidateID  string `json:"candidateId"`
	SupervisorID string `json:"supervisorId"`
	AgentID      string `json:"agentId,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

func toConversationView(c *store.Conversation) conversationView {
	return conversationView{
		ID:           c.ID,
		CandidateID:  c.CandidateID,
		SupervisorID: c.SupervisorID,
		AgentID:      c.AgentID,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

type statsView struct {
	SupervisorID         string `json:"supervisorId"`
	SupervisorName       string `json:"supervisorName"`
	Agents               int    `json:"agents"`
	ConversationsHandled int    `json:"conversationsHandled"`
}

func toStatsViews(stats []*store.SupervisorStats) []statsView {
	out := make([]statsView, 0, len(stats))
	for _, s := range stats {
		out = append(out, statsView{
			SupervisorID:         s.SupervisorID,
			SupervisorName:       s.SupervisorName,
			Agents:               s.Agents,
			ConversationsHandled: s.ConversationsHandled,
		})
	}
	return out
}
