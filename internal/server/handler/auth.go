package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nexustrade/perpsim/internal/domain"
)

// AuthService defines the methods the auth handler requires.
type AuthService interface {
	Register(ctx context.Context, email, password, wallet string) (domain.User, error)
	Login(ctx context.Context, email, password string) (string, domain.User, error)
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// registerRequest is the JSON body for registration.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Wallet   string `json:"wallet"`
}

// userResponse is the public view of a user. The password hash never leaves
// the service.
type userResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Wallet  string `json:"wallet"`
	Balance string `json:"balance"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Email:   u.Email,
		Wallet:  u.Wallet,
		Balance: u.Balance.String(),
	}
}

// Register creates a new user account.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// loginRequest is the JSON body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries the issued token and the user it belongs to.
type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login verifies credentials and issues a bearer token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}
