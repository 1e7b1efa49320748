// ABOUTME: Signup, login and whoami endpoints
// ABOUTME: Signup creates candidates, agents and supervisors; admins come from the operator CLI

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/store"
)

type signupRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	SupervisorID string `json:"supervisorId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateSignup(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	role := store.Role(req.Role)
	if role == store.RoleAgent {
		if msg := s.checkSupervisor(r.Context(), req.SupervisorID); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		SupervisorID: req.SupervisorID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("signup failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	token, err := s.verifier.Generate(auth.Identity{ID: user.ID, Role: user.Role}, s.tokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", string(user.Role))
	writeData(w, http.StatusCreated, authResponse{Token: token, User: toUserView(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.verifier.Generate(auth.Identity{ID: user.ID, Role: user.Role}, s.tokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeData(w, http.StatusOK, authResponse{Token: token, User: toUserView(user)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := s.store.GetUser(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		s.logger.Error("user lookup failed", "user_id", identity.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeData(w, http.StatusOK, toUserView(user))
}

func validateSignup(req *signupRequest) string {
	if req.Name == "" {
		return "name required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "valid email required"
	}
	if len(req.Password) < auth.MinPasswordLength {
		return "password too short"
	}
	role := store.Role(req.Role)
	if !role.Valid() || role == store.RoleAdmin {
		return "role must be candidate, agent or supervisor"
	}
	if role == store.RoleAgent && req.SupervisorID == "" {
		return "agents require a supervisorId"
	}
	if role != store.RoleAgent && req.SupervisorID != "" {
		return "only agents take a supervisorId"
	}
	return ""
}

// checkSupervisor verifies the referenced user exists and is a supervisor.
func (s *Server) checkSupervisor(ctx context.Context, supervisorID string) string {
	sup, err := s.store.GetUser(ctx, supervisorID)
	if err != nil {
		return "supervisor not found"
	}
	if sup.Role != store.RoleSupervisor {
		return "supervisorId does not reference a supervisor"
	}
	return ""
}
