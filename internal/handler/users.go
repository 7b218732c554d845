package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/service"
)

// UserHandler serves the admin user-management and dashboard endpoints.
type UserHandler struct {
	users    *service.UserService
	activity *service.ActivityService
	logger   *slog.Logger
}

func NewUserHandler(users *service.UserService, activity *service.ActivityService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, activity: activity, logger: logger}
}

type roleRequest struct {
	UserType *model.UserType   `json:"userType"`
	Status   *model.UserStatus `json:"status"`
	Faculty  *string           `json:"faculty"`
}

// HandleList returns accounts, optionally by role and search term.
//
// HTTP: GET /api/users?type=voter&q=science
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), service.UserQuery{
		UserType: model.UserType(r.URL.Query().Get("type")),
		Search:   r.URL.Query().Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleUpdate sets a user's role, approval status or faculty.
//
// HTTP: PATCH /api/users/{id}
// REQUEST BODY: {"status":"approved"} or {"userType":"voter","faculty":"Science"}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.AdminUpdate(r.Context(), actor.UserID, chi.URLParam(r, "id"), service.RoleUpdate{
		UserType: req.UserType,
		Status:   req.Status,
		Faculty:  req.Faculty,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes an account.
//
// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), actor.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleActivity returns the dashboard counters.
//
// HTTP: GET /api/activity
func (h *UserHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.activity.Activity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}
