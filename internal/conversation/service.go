// ABOUTME: Conversation lifecycle service: state machine and role-scoped authorization
// ABOUTME: Every status transition is authorized here before the durable record is touched

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/store"
)

// Authorization and state-machine errors. The session and HTTP layers map
// these to wire error codes and status codes respectively.
var (
	ErrForbidden          = errors.New("not allowed")
	ErrNotFound           = errors.New("conversation not found")
	ErrAlreadyClosed      = errors.New("conversation already closed")
	ErrNotAssigned        = errors.New("conversation not yet assigned")
	ErrNotOpen            = errors.New("conversation must be open")
	ErrActiveConversation = errors.New("candidate already has an active conversation")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrNotAnAgent         = errors.New("user is not an agent")
	ErrWrongSupervisor    = errors.New("agent does not belong to this supervisor")
	ErrAlreadyAssigned    = errors.New("conversation already has an agent")
)

// Service owns the conversation state machine (open -> assigned -> closed)
// over the durable record. It performs no room or buffer bookkeeping; the
// session layer composes it with those.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a conversation Service. Pass nil logger for the default.
func New(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "conversation"),
	}
}

// Create starts a new conversation for a candidate under the given
// supervisor. Only candidates may create conversations, and a candidate may
// hold at most one non-closed conversation at a time.
func (s *Service) Create(ctx context.Context, actor auth.Identity, supervisorID string) (*store.Conversation, error) {
	if actor.Role != store.RoleCandidate {
		return nil, ErrForbidden
	}

	sup, err := s.store.GetUser(ctx, supervisorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("supervisor %s: %w", supervisorID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("looking up supervisor: %w", err)
	}
	if sup.Role != store.RoleSupervisor {
		return nil, ErrForbidden
	}

	if _, err := s.store.FindActiveConversationByCandidate(ctx, actor.ID); err == nil {
		return nil, ErrActiveConversation
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking active conversations: %w", err)
	}

	conv := &store.Conversation{
		ID:           uuid.New().String(),
		CandidateID:  actor.ID,
		SupervisorID: supervisorID,
		Status:       store.StatusOpen,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"candidate_id", actor.ID,
		"supervisor_id", supervisorID)
	return conv, nil
}

// Assign binds an agent to a conversation. Only the owning supervisor may
// assign, the agent must exist, hold the agent role, and report to that
// supervisor. The binding is set at most once.
func (s *Service) Assign(ctx context.Context, actor auth.Identity, conversationID, agentID string) (*store.Conversation, error) {
	if actor.Role != store.RoleSupervisor {
		return nil, ErrForbidden
	}

	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == store.StatusClosed {
		return nil, ErrAlreadyClosed
	}
	if conv.SupervisorID != actor.ID {
		return nil, ErrForbidden
	}

	agent, err := s.store.GetUser(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("looking up agent: %w", err)
	}
	if agent.Role != store.RoleAgent {
		return nil, ErrNotAnAgent
	}
	if agent.SupervisorID != conv.SupervisorID {
		return nil, ErrWrongSupervisor
	}

	if err := s.store.BindAgent(ctx, conversationID, agentID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyAssigned
		}
		return nil, fmt.Errorf("binding agent: %w", err)
	}
	conv.AgentID = agentID

	s.logger.Info("agent assigned",
		"conversation_id", conversationID,
		"agent_id", agentID,
		"supervisor_id", actor.ID)
	return conv, nil
}

// AuthorizeJoin checks that the actor may join the real-time room for a
// conversation. Candidates may only join conversations they own, agents only
// conversations they are bound to, and closed conversations admit nobody. No
// other role participates in the real-time channel.
func (s *Service) AuthorizeJoin(ctx context.Context, actor auth.Identity, conversationID string) (*store.Conversation, error) {
	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case store.RoleCandidate:
		if conv.CandidateID != actor.ID {
			return nil, ErrForbidden
		}
	case store.RoleAgent:
		if conv.AgentID != actor.ID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	// Rooms exist only for live conversations.
	if conv.Status == store.StatusClosed {
		return nil, ErrAlreadyClosed
	}

	return conv, nil
}

// MarkAssigned transitions a conversation from open to assigned. It is the
// implicit side effect of the bound agent joining the room, and is idempotent
// when the conversation is already assigned.
func (s *Service) MarkAssigned(ctx context.Context, conversationID string) error {
	err := s.store.UpdateConversationStatus(ctx, conversationID, store.StatusOpen, store.StatusAssigned)
	if err == nil {
		s.logger.Info("conversation assigned", "conversation_id", conversationID)
		return nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("marking assigned: %w", err)
	}

	// Conflict: either already assigned (fine) or already closed
	conv, getErr := s.get(ctx, conversationID)
	if getErr != nil {
		return getErr
	}
	if conv.Status == store.StatusClosed {
		return ErrAlreadyClosed
	}
	return nil
}

// AuthorizeAgentClose checks that the actor is the bound agent of a
// conversation whose status is exactly assigned. The caller is responsible
// for flushing the buffer and then calling MarkClosed; the check and the
// transition are split so the flush can happen in between.
func (s *Service) AuthorizeAgentClose(ctx context.Context, actor auth.Identity, conversationID string) (*store.Conversation, error) {
	if actor.Role != store.RoleAgent {
		return nil, ErrForbidden
	}

	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.AgentID != actor.ID {
		return nil, ErrForbidden
	}
	switch conv.Status {
	case store.StatusOpen:
		return nil, ErrNotAssigned
	case store.StatusClosed:
		return nil, ErrAlreadyClosed
	}
	return conv, nil
}

// MarkClosed transitions a conversation from the given prior status to
// closed.
func (s *Service) MarkClosed(ctx context.Context, conversationID string, from store.Status) error {
	if err := s.store.UpdateConversationStatus(ctx, conversationID, from, store.StatusClosed); err != nil {
		return fmt.Errorf("marking closed: %w", err)
	}
	s.logger.Info("conversation closed", "conversation_id", conversationID, "from", string(from))
	return nil
}

// CloseBySupervisor closes a conversation through the request/response path.
// Admins may close any conversation, supervisors only their own, and only
// while the status is still open. This precondition deliberately differs
// from the agent close path, which requires assigned: each role has its own
// terminal action on the stage of the lifecycle it owns.
func (s *Service) CloseBySupervisor(ctx context.Context, actor auth.Identity, conversationID string) (*store.Conversation, error) {
	if actor.Role != store.RoleAdmin && actor.Role != store.RoleSupervisor {
		return nil, ErrForbidden
	}

	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if actor.Role == store.RoleSupervisor && conv.SupervisorID != actor.ID {
		return nil, ErrForbidden
	}
	switch conv.Status {
	case store.StatusAssigned:
		return nil, ErrNotOpen
	case store.StatusClosed:
		return nil, ErrAlreadyClosed
	}

	if err := s.MarkClosed(ctx, conversationID, store.StatusOpen); err != nil {
		return nil, err
	}
	conv.Status = store.StatusClosed
	return conv, nil
}

// Get returns a conversation if the actor is allowed to see it: the owning
// candidate, the bound agent, the owning supervisor, or an admin.
func (s *Service) Get(ctx context.Context, actor auth.Identity, conversationID string) (*store.Conversation, error) {
	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	allowed := actor.Role == store.RoleAdmin ||
		conv.CandidateID == actor.ID ||
		conv.AgentID == actor.ID ||
		conv.SupervisorID == actor.ID
	if !allowed {
		return nil, ErrForbidden
	}
	return conv, nil
}

// Analytics reports, per supervisor, how many agents they manage and how
// many conversations those agents have closed. Admin only.
func (s *Service) Analytics(ctx context.Context, actor auth.Identity) ([]*store.SupervisorStats, error) {
	if actor.Role != store.RoleAdmin {
		return nil, ErrForbidden
	}

	supervisors, err := s.store.ListUsersByRole(ctx, store.RoleSupervisor)
	if err != nil {
		return nil, fmt.Errorf("listing supervisors: %w", err)
	}
	agents, err := s.store.ListUsersByRole(ctx, store.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	agentsBySupervisor := make(map[string][]string)
	for _, agent := range agents {
		agentsBySupervisor[agent.SupervisorID] = append(agentsBySupervisor[agent.SupervisorID], agent.ID)
	}

	stats := make([]*store.SupervisorStats, 0, len(supervisors))
	for _, sup := range supervisors {
		agentIDs := agentsBySupervisor[sup.ID]
		handled, err := s.store.CountClosedByAgents(ctx, agentIDs)
		if err != nil {
			return nil, fmt.Errorf("counting closed conversations for %s: %w", sup.ID, err)
		}
		stats = append(stats, &store.SupervisorStats{
			SupervisorID:         sup.ID,
			SupervisorName:       sup.Name,
			Agents:               len(agentIDs),
			ConversationsHandled: handled,
		})
	}
	return stats, nil
}

func (s *Service) get(ctx context.Context, conversationID string) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, nil
}
