// ABOUTME: Tests for the conversation lifecycle service
// ABOUTME: Verifies state machine monotonicity and role-scoped authorization

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/store"
)

type fixture struct {
	store *store.MockStore
	svc   *Service

	admin      auth.Identity
	supervisor auth.Identity
	agent      auth.Identity
	candidate  auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := store.NewMockStore()
	ctx := context.Background()

	users := []*store.User{
		{ID: "admin-1", Name: "Ada", Email: "ada@example.com", Role: store.RoleAdmin},
		{ID: "sup-1", Name: "Sam", Email: "sam@example.com", Role: store.RoleSupervisor},
		{ID: "sup-2", Name: "Sue", Email: "sue@example.com", Role: store.RoleSupervisor},
		{ID: "agent-1", Name: "Aki", Email: "aki@example.com", Role: store.RoleAgent, SupervisorID: "sup-1"},
		{ID: "agent-2", Name: "Ann", Email: "ann@example.com", Role: store.RoleAgent, SupervisorID: "sup-2"},
		{ID: "cand-1", Name: "Cai", Email: "cai@example.com", Role: store.RoleCandidate},
	}
	for _, u := range users {
		u.PasswordHash = "x"
		u.CreatedAt = time.Now()
		require.NoError(t, ms.CreateUser(ctx, u))
	}

	return &fixture{
		store:      ms,
		svc:        New(ms, nil),
		admin:      auth.Identity{ID: "admin-1", Role: store.RoleAdmin},
		supervisor: auth.Identity{ID: "sup-1", Role: store.RoleSupervisor},
		agent:      auth.Identity{ID: "agent-1", Role: store.RoleAgent},
		candidate:  auth.Identity{ID: "cand-1", Role: store.RoleCandidate},
	}
}

func (f *fixture) create(t *testing.T) *store.Conversation {
	t.Helper()
	conv, err := f.svc.Create(context.Background(), f.candidate, "sup-1")
	require.NoError(t, err)
	return conv
}

func (f *fixture) createAssigned(t *testing.T) *store.Conversation {
	t.Helper()
	conv := f.create(t)
	_, err := f.svc.Assign(context.Background(), f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkAssigned(context.Background(), conv.ID))
	return conv
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	conv := f.create(t)
	assert.Equal(t, store.StatusOpen, conv.Status)
	assert.Equal(t, "cand-1", conv.CandidateID)
	assert.Equal(t, "sup-1", conv.SupervisorID)
	assert.Empty(t, conv.AgentID)
}

func TestCreate_NonCandidateForbidden(t *testing.T) {
	f := newFixture(t)

	for _, actor := range []auth.Identity{f.admin, f.supervisor, f.agent} {
		_, err := f.svc.Create(context.Background(), actor, "sup-1")
		assert.ErrorIs(t, err, ErrForbidden, "role %s", actor.Role)
	}
}

func TestCreate_SecondActiveConversationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv := f.create(t)

	_, err := f.svc.Create(ctx, f.candidate, "sup-1")
	assert.ErrorIs(t, err, ErrActiveConversation)

	// Still rejected while assigned
	_, err = f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkAssigned(ctx, conv.ID))
	_, err = f.svc.Create(ctx, f.candidate, "sup-1")
	assert.ErrorIs(t, err, ErrActiveConversation)

	// Allowed again once closed
	require.NoError(t, f.svc.MarkClosed(ctx, conv.ID, store.StatusAssigned))
	_, err = f.svc.Create(ctx, f.candidate, "sup-1")
	assert.NoError(t, err)
}

func TestAssign(t *testing.T) {
	f := newFixture(t)

	conv := f.create(t)
	got, err := f.svc.Assign(context.Background(), f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", got.AgentID)
}

func TestAssign_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)

	tests := []struct {
		name    string
		actor   auth.Identity
		convID  string
		agentID string
		wantErr error
	}{
		{"candidate cannot assign", f.candidate, conv.ID, "agent-1", ErrForbidden},
		{"missing conversation", f.supervisor, "missing", "agent-1", ErrNotFound},
		{"other supervisor", auth.Identity{ID: "sup-2", Role: store.RoleSupervisor}, conv.ID, "agent-1", ErrForbidden},
		{"missing agent", f.supervisor, conv.ID, "missing", ErrAgentNotFound},
		{"not an agent", f.supervisor, conv.ID, "cand-1", ErrNotAnAgent},
		{"agent of other supervisor", f.supervisor, conv.ID, "agent-2", ErrWrongSupervisor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Assign(ctx, tt.actor, tt.convID, tt.agentID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAssign_BindsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)

	_, err := f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestAssign_ClosedConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)
	require.NoError(t, f.svc.MarkClosed(ctx, conv.ID, store.StatusOpen))

	_, err := f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestAuthorizeJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)
	_, err := f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)

	_, err = f.svc.AuthorizeJoin(ctx, f.candidate, conv.ID)
	assert.NoError(t, err)
	_, err = f.svc.AuthorizeJoin(ctx, f.agent, conv.ID)
	assert.NoError(t, err)

	_, err = f.svc.AuthorizeJoin(ctx, auth.Identity{ID: "cand-2", Role: store.RoleCandidate}, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.AuthorizeJoin(ctx, auth.Identity{ID: "agent-2", Role: store.RoleAgent}, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.AuthorizeJoin(ctx, f.supervisor, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.AuthorizeJoin(ctx, f.admin, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeJoin_Closed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.createAssigned(t)
	require.NoError(t, f.svc.MarkClosed(ctx, conv.ID, store.StatusAssigned))

	_, err := f.svc.AuthorizeJoin(ctx, f.agent, conv.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	_, err = f.svc.AuthorizeJoin(ctx, f.candidate, conv.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestMarkAssigned_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)
	_, err := f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkAssigned(ctx, conv.ID))
	require.NoError(t, f.svc.MarkAssigned(ctx, conv.ID))

	got, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusAssigned, got.Status)
}

func TestMarkAssigned_ClosedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)
	require.NoError(t, f.svc.MarkClosed(ctx, conv.ID, store.StatusOpen))

	err := f.svc.MarkAssigned(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	// Never reopens
	got, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusClosed, got.Status)
}

func TestAuthorizeAgentClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.createAssigned(t)

	got, err := f.svc.AuthorizeAgentClose(ctx, f.agent, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
}

func TestAuthorizeAgentClose_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.create(t)
	_, err := f.svc.Assign(ctx, f.supervisor, open.ID, "agent-1")
	require.NoError(t, err)

	// Bound but still open: close requires assigned
	_, err = f.svc.AuthorizeAgentClose(ctx, f.agent, open.ID)
	assert.ErrorIs(t, err, ErrNotAssigned)

	require.NoError(t, f.svc.MarkAssigned(ctx, open.ID))

	// Not the bound agent
	_, err = f.svc.AuthorizeAgentClose(ctx, auth.Identity{ID: "agent-2", Role: store.RoleAgent}, open.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Not an agent at all
	_, err = f.svc.AuthorizeAgentClose(ctx, f.candidate, open.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Already closed
	require.NoError(t, f.svc.MarkClosed(ctx, open.ID, store.StatusAssigned))
	_, err = f.svc.AuthorizeAgentClose(ctx, f.agent, open.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCloseBySupervisor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.create(t)

	got, err := f.svc.CloseBySupervisor(ctx, f.supervisor, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusClosed, got.Status)
}

func TestCloseBySupervisor_AdminMayCloseAny(t *testing.T) {
	f := newFixture(t)
	conv := f.create(t)

	_, err := f.svc.CloseBySupervisor(context.Background(), f.admin, conv.ID)
	assert.NoError(t, err)
}

func TestCloseBySupervisor_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv := f.create(t)

	// Wrong roles
	_, err := f.svc.CloseBySupervisor(ctx, f.candidate, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CloseBySupervisor(ctx, f.agent, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Not the owning supervisor
	_, err = f.svc.CloseBySupervisor(ctx, auth.Identity{ID: "sup-2", Role: store.RoleSupervisor}, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Assigned conversations are the agent's to close
	_, err = f.svc.Assign(ctx, f.supervisor, conv.ID, "agent-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkAssigned(ctx, conv.ID))
	_, err = f.svc.CloseBySupervisor(ctx, f.supervisor, conv.ID)
	assert.ErrorIs(t, err, ErrNotOpen)

	// Already closed
	require.NoError(t, f.svc.MarkClosed(ctx, conv.ID, store.StatusAssigned))
	_, err = f.svc.CloseBySupervisor(ctx, f.supervisor, conv.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv := f.createAssigned(t)
	require.NoError(t, f.svc.MarkClosed(ctx, conv.ID, store.StatusAssigned))

	stats, err := f.svc.Analytics(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byID := make(map[string]*store.SupervisorStats)
	for _, s := range stats {
		byID[s.SupervisorID] = s
	}
	require.Contains(t, byID, "sup-1")
	assert.Equal(t, 1, byID["sup-1"].Agents)
	assert.Equal(t, 1, byID["sup-1"].ConversationsHandled)
	assert.Equal(t, 1, byID["sup-2"].Agents)
	assert.Equal(t, 0, byID["sup-2"].ConversationsHandled)
}

func TestAnalytics_AdminOnly(t *testing.T) {
	f := newFixture(t)

	for _, actor := range []auth.Identity{f.supervisor, f.agent, f.candidate} {
		_, err := f.svc.Analytics(context.Background(), actor)
		assert.ErrorIs(t, err, ErrForbidden, "role %s", actor.Role)
	}
}
