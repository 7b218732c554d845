package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/service"
)

// AuthHandler manages registration, login and the caller's own account.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create a pending account
//   - HandleLogin    → check credentials, issue a JWT
//   - HandleMe       → return the logged-in user's profile
//   - HandleUpdateMe → self-service profile edits
//
// Tokens are stateless; logging out is the client dropping its token.
type AuthHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewAuthHandler(users *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

type registerRequest struct {
	FullName     string         `json:"fullName"`
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	UserType     model.UserType `json:"userType"`
	Faculty      string         `json:"faculty"`
	Level        string         `json:"level"`
	IndexNumber  string         `json:"indexNumber"`
	ProfileImage string         `json:"profileImage"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is returned by login.
type authResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
}

type profileRequest struct {
	FullName     *string `json:"fullName"`
	Faculty      *string `json:"faculty"`
	Level        *string `json:"level"`
	IndexNumber  *string `json:"indexNumber"`
	ProfileImage *string `json:"profileImage"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"fullName":"…","email":"…","password":"…","faculty":"Science"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		FullName:     req.FullName,
		Email:        req.Email,
		Password:     req.Password,
		UserType:     req.UserType,
		Faculty:      req.Faculty,
		Level:        req.Level,
		IndexNumber:  req.IndexNumber,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin exchanges credentials for a bearer token.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: res.User, Token: res.Token, TokenType: "Bearer"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe applies profile edits. Omitted fields are unchanged.
//
// HTTP: PUT /api/me
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id.UserID, service.ProfileUpdate{
		FullName:     req.FullName,
		Faculty:      req.Faculty,
		Level:        req.Level,
		IndexNumber:  req.IndexNumber,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
