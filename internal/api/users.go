package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nixstrav/mng-core/internal/audit"
	"github.com/nixstrav/mng-core/internal/auth"
)

type createUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

type updateUserRequest struct {
	Role     *auth.Role `json:"role,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// userView strips the password hash from API responses.
type userView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Role        auth.Role `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   string    `json:"created_at"`
	LastLoginAt string    `json:"last_login_at,omitempty"`
}

func viewOf(u *auth.User) userView {
	v := userView{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.LastLoginAt != nil {
		v.LastLoginAt = u.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return v
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, viewOf(&users[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": views,
		"count": len(views),
	})
}

// handleCreateUser creates a new user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := auth.ValidateUsername(req.Username); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		s.writeDomainError(w, err)
		return
	}

	role := req.Role
	if role == "" {
		role = auth.RoleViewer
	}
	if !role.Valid() {
		s.writeDomainError(w, auth.ErrInvalidRole)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	user := &auth.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		s.writeDomainError(w, err)
		return
	}

	sess := sessionFromContext(r.Context())
	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "created_by", sess.Username)
	s.recordAudit(r, sess.Username, audit.ActionUserCreate, "user", user.ID, nil, map[string]any{
		"username": user.Username,
		"role":     string(user.Role),
	})

	writeJSON(w, http.StatusCreated, viewOf(user))
}

// handleUpdateUser changes a user's role or active flag.
//
// Demotion and deactivation both end the target's open sessions; role
// snapshots in live sessions would otherwise outlast the change.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	sess := sessionFromContext(r.Context())
	if user.ID == sess.UserID && req.IsActive != nil && !*req.IsActive {
		writeBadRequest(w, "cannot deactivate your own account")
		return
	}

	before := map[string]any{"role": string(user.Role), "is_active": user.IsActive}

	dropSessions := false
	if req.Role != nil {
		if !req.Role.Valid() {
			s.writeDomainError(w, auth.ErrInvalidRole)
			return
		}
		if req.Role.Rank() < user.Role.Rank() {
			dropSessions = true
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		if !*req.IsActive {
			dropSessions = true
		}
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if dropSessions {
		n := s.sessions.InvalidateUser(user.ID)
		s.logger.Info("sessions invalidated", "user_id", user.ID, "count", n)
	}

	s.recordAudit(r, sess.Username, audit.ActionUserUpdate, "user", user.ID, before, map[string]any{
		"role":      string(user.Role),
		"is_active": user.IsActive,
	})

	writeJSON(w, http.StatusOK, viewOf(user))
}

// handleSetPassword replaces a user's password.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		s.writeDomainError(w, err)
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to set password")
		return
	}

	if err := s.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		s.writeDomainError(w, err)
		return
	}

	sess := sessionFromContext(r.Context())
	s.recordAudit(r, sess.Username, audit.ActionUserUpdate, "user", user.ID, nil, map[string]any{
		"password_changed": true,
	})

	writeJSON(w, http.StatusOK, map[string]any{"password_set": true})
}
