// ABOUTME: REST and websocket admission tests over a seeded mock store
// ABOUTME: Exercises the response envelope and the auth boundary end to end

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/conversation"
	"github.com/helplane/helplane/internal/session"
	"github.com/helplane/helplane/internal/store"
)

const testSecret = "test-secret"

type apiFixture struct {
	st       *store.MockStore
	verifier *auth.JWTVerifier
	handler  http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st := store.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewJWTVerifier([]byte(testSecret))

	directory := session.NewDirectory()
	buffer := session.NewBuffer()
	convs := conversation.New(st, logger)
	dispatcher := session.NewDispatcher(convs, st, directory, buffer, session.NewRelay(directory, logger), 2*time.Second, logger)

	srv := NewServer(st, convs, dispatcher, verifier, Options{
		TokenTTL: time.Hour,
	}, logger)

	return &apiFixture{st: st, verifier: verifier, handler: srv.Router()}
}

func (f *apiFixture) seedUser(t *testing.T, id string, role store.Role, supervisorID string) {
	t.Helper()
	hash, err := auth.HashPassword("hunter2x")
	require.NoError(t, err)
	require.NoError(t, f.st.CreateUser(context.Background(), &store.User{
		ID:           id,
		Name:         id,
		Email:        id + "@example.com",
		PasswordHash: hash,
		Role:         role,
		SupervisorID: supervisorID,
		CreatedAt:    time.Now().UTC(),
	}))
}

func (f *apiFixture) token(t *testing.T, id string, role store.Role) string {
	t.Helper()
	token, err := f.verifier.Generate(auth.Identity{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

// do performs a request and decodes the response envelope.
func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func dataField[T any](t *testing.T, env envelope) T {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec, env := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestSignupAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"name":     "Cory",
		"email":    "cory@example.com",
		"password": "hunter2x",
		"role":     "candidate",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %v", env.Message)
	created := dataField[authResponse](t, env)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "candidate", created.User.Role)
	assert.Empty(t, created.User.SupervisorID)

	// The issued token authenticates /auth/me.
	rec, env = f.do(t, http.MethodGet, "/api/auth/me", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := dataField[userView](t, env)
	assert.Equal(t, created.User.ID, me.ID)

	// Login with the registered credentials.
	rec, env = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "cory@example.com",
		"password": "hunter2x",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, dataField[authResponse](t, env).Token)

	// Wrong password.
	rec, _ = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "cory@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Duplicate email.
	rec, _ = f.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"name":     "Other",
		"email":    "cory@example.com",
		"password": "hunter2x",
		"role":     "candidate",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "sup-1", store.RoleSupervisor, "")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"email": "a@b.com", "password": "hunter2x", "role": "candidate"}},
		{"bad email", map[string]any{"name": "A", "email": "nope", "password": "hunter2x", "role": "candidate"}},
		{"short password", map[string]any{"name": "A", "email": "a@b.com", "password": "abc", "role": "candidate"}},
		{"unknown role", map[string]any{"name": "A", "email": "a@b.com", "password": "hunter2x", "role": "boss"}},
		{"admin via signup", map[string]any{"name": "A", "email": "a@b.com", "password": "hunter2x", "role": "admin"}},
		{"agent without supervisor", map[string]any{"name": "A", "email": "a@b.com", "password": "hunter2x", "role": "agent"}},
		{"candidate with supervisor", map[string]any{"name": "A", "email": "a@b.com", "password": "hunter2x", "role": "candidate", "supervisorId": "sup-1"}},
		{"agent with missing supervisor", map[string]any{"name": "A", "email": "a@b.com", "password": "hunter2x", "role": "agent", "supervisorId": "ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationLifecycleOverREST(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "sup-1", store.RoleSupervisor, "")
	f.seedUser(t, "agent-1", store.RoleAgent, "sup-1")
	f.seedUser(t, "cand-1", store.RoleCandidate, "")

	candToken := f.token(t, "cand-1", store.RoleCandidate)
	supToken := f.token(t, "sup-1", store.RoleSupervisor)

	rec, env := f.do(t, http.MethodPost, "/api/conversations", candToken, map[string]any{
		"supervisorId": "sup-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %v", env.Message)
	conv := dataField[conversationView](t, env)
	assert.Equal(t, "open", conv.Status)

	// A second active conversation for the same candidate conflicts.
	rec, _ = f.do(t, http.MethodPost, "/api/conversations", candToken, map[string]any{
		"supervisorId": "sup-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Supervisors cannot create conversations.
	rec, _ = f.do(t, http.MethodPost, "/api/conversations", supToken, map[string]any{
		"supervisorId": "sup-1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Owning supervisor assigns their agent.
	rec, env = f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/assign", supToken, map[string]any{
		"agentId": "agent-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %v", env.Message)
	assigned := dataField[conversationView](t, env)
	assert.Equal(t, "assigned", assigned.Status)
	assert.Equal(t, "agent-1", assigned.AgentID)

	// Supervisor close is only valid before assignment.
	rec, _ = f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/close", supToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The candidate can read their conversation; a stranger cannot.
	rec, _ = f.do(t, http.MethodGet, "/api/conversations/"+conv.ID, candToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	strangerToken := f.token(t, "someone-else", store.RoleCandidate)
	rec, _ = f.do(t, http.MethodGet, "/api/conversations/"+conv.ID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSupervisorCloseFromOpen(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "sup-1", store.RoleSupervisor, "")
	f.seedUser(t, "cand-1", store.RoleCandidate, "")

	candToken := f.token(t, "cand-1", store.RoleCandidate)
	supToken := f.token(t, "sup-1", store.RoleSupervisor)

	_, env := f.do(t, http.MethodPost, "/api/conversations", candToken, map[string]any{
		"supervisorId": "sup-1",
	})
	conv := dataField[conversationView](t, env)

	rec, env := f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/close", supToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %v", env.Message)
	assert.Equal(t, "closed", dataField[conversationView](t, env).Status)

	// Closing again conflicts.
	rec, _ = f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/close", supToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalyticsAdminOnly(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "admin-1", store.RoleAdmin, "")
	f.seedUser(t, "sup-1", store.RoleSupervisor, "")
	f.seedUser(t, "agent-1", store.RoleAgent, "sup-1")

	rec, _ := f.do(t, http.MethodGet, "/api/admin/analytics", f.token(t, "sup-1", store.RoleSupervisor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/api/admin/analytics", f.token(t, "admin-1", store.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := dataField[[]statsView](t, env)
	require.Len(t, stats, 1)
	assert.Equal(t, "sup-1", stats[0].SupervisorID)
	assert.Equal(t, 1, stats[0].Agents)
}

func TestWebsocketAdmission(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "sup-1", store.RoleSupervisor, "")
	f.seedUser(t, "cand-1", store.RoleCandidate, "")

	srv := httptest.NewServer(f.handler)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	// No token.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Garbage token.
	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token connects and can drive the session protocol.
	candToken := f.token(t, "cand-1", store.RoleCandidate)
	_, env := f.do(t, http.MethodPost, "/api/conversations", candToken, map[string]any{
		"supervisorId": "sup-1",
	})
	conv := dataField[conversationView](t, env)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+candToken, nil)
	require.NoError(t, err)
	defer ws.Close()

	join := map[string]any{
		"event": "JOIN_CONVERSATION",
		"data":  map[string]any{"conversationId": conv.ID},
	}
	require.NoError(t, ws.WriteJSON(join))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply struct {
		Event string `json:"event"`
		Data  struct {
			ConversationID string `json:"conversationId"`
			Status         string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&reply))
	assert.Equal(t, "JOINED_CONVERSATION", reply.Event)
	assert.Equal(t, conv.ID, reply.Data.ConversationID)
	assert.Equal(t, "open", reply.Data.Status)
}
