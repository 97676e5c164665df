package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/apperr"
	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/session"
)

// SessionService signs staff in and out.
// Satisfied by *session.Manager; narrow interface for testability.
type SessionService interface {
	SignIn(ctx context.Context, email, password string) (session.Session, error)
	SignOut(ctx context.Context, claims *auth.Claims) error
	Profile(ctx context.Context, claims *auth.Claims) (session.Profile, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	sessions  SessionService
	log       *logger.Logger
	onSignOut []func(staffID uuid.UUID)
}

// NewAuthHandler creates a new AuthHandler. onSignOut hooks run after a
// successful sign out so per-staff state (cart, category) can be dropped.
func NewAuthHandler(sessions SessionService, log *logger.Logger, onSignOut ...func(staffID uuid.UUID)) *AuthHandler {
	return &AuthHandler{sessions: sessions, log: log, onSignOut: onSignOut}
}

// RegisterPublicRoutes registers endpoints reachable without a token.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// RegisterRoutes registers endpoints that need an authenticated session.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/me", h.Me)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type branchResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
}

type profileResponse struct {
	ID       uuid.UUID       `json:"id"`
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	BranchID *uuid.UUID      `json:"branch_id"`
	Branch   *branchResponse `json:"branch"`
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	User        profileResponse `json:"user"`
}

// --- Handlers ---

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	sess, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeReadFailed)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		User:        toProfileResponse(sess.Profile),
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if err := h.sessions.SignOut(r.Context(), claims); err != nil {
		writeError(w, r, h.log, err, apperr.CodeWriteFailed)
		return
	}
	for _, fn := range h.onSignOut {
		fn(claims.UserID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	profile, err := h.sessions.Profile(r.Context(), claims)
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeReadFailed)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// --- Helpers ---

func toProfileResponse(p session.Profile) profileResponse {
	resp := profileResponse{
		ID:       p.Staff.ID,
		Email:    p.Staff.Email,
		FullName: p.Staff.FullName,
	}
	if p.Staff.BranchID != uuid.Nil {
		id := p.Staff.BranchID
		resp.BranchID = &id
	}
	if p.Branch != nil {
		resp.Branch = &branchResponse{
			ID:       p.Branch.ID,
			Name:     p.Branch.Name,
			Location: p.Branch.Location,
		}
	}
	return resp
}
