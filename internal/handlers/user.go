package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/types"
)

// UserHandler provides admin user-management endpoints.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user-management routes on the given router. All
// routes require an authenticated caller; the service layer enforces the
// admin-only rule.
func UserRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService)

	r.Use(authMiddleware, CurrentUser(userService))
	r.Get("/", handler.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/role", handler.ChangeRole)
		r.Delete("/", handler.DeleteUser)
	})
}

// UserListResponse carries every account plus per-role totals.
type UserListResponse struct {
	Users  []types.User       `json:"users"`
	Counts map[types.Role]int `json:"counts"`
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	users, counts, err := h.userService.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{Users: users, Counts: counts})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}
	if !caller.Role.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := parseURLID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.ChangeRole(r.Context(), caller, id, types.Role(req.Role))
	if err != nil {
		writeServiceError(w, err, "failed to change role")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
