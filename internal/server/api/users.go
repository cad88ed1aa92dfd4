package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/paging"
	"github.com/ayusman/mudra/internal/store"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	users store.UserStore
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(users store.UserStore) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Routes returns the router mounted at /api/user.
func (h *ProfileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/profile", h.get)
	r.Put("/profile", h.update)
	return r
}

// userUpdate holds the editable profile fields. Nil fields are left alone.
type userUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    *store.User `json:"user"`
}

func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	stored, err := h.users.Get(r.Context(), u.ID)
	if err != nil {
		writeStoreError(w, err, "Failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// update changes name and email. Users cannot change their own role.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	var req userUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.Name == nil && req.Email == nil {
		writeError(w, http.StatusBadRequest, "No valid fields to update")
		return
	}
	req.Role = nil

	updated, err := applyUserUpdate(r, h.users, u.ID, req)
	if err != nil {
		writeStoreError(w, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Profile updated successfully", User: updated})
}

func applyUserUpdate(r *http.Request, users store.UserStore, id string, req userUpdate) (*store.User, error) {
	u, err := users.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = strings.TrimSpace(*req.Email)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if err := users.Update(r.Context(), u); err != nil {
		return nil, err
	}
	return users.Get(r.Context(), id)
}

// AdminHandler serves the admin dashboard and user management.
type AdminHandler struct {
	users   store.UserStore
	history *history.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users store.UserStore, hist *history.Service) *AdminHandler {
	return &AdminHandler{users: users, history: hist}
}

// Routes returns the router mounted at /api/admin. Every route requires the
// admin role.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireAdmin)
	r.Get("/dashboard", h.dashboard)
	r.Get("/users", h.listUsers)
	r.Get("/users/{id}", h.getUser)
	r.Put("/users/{id}", h.updateUser)
	r.Delete("/users/{id}", h.deleteUser)
	return r
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.history.Dashboard(r.Context())
	if err != nil {
		writeStoreError(w, err, "Error getting dashboard data")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type userListResponse struct {
	Users      []*store.User     `json:"users"`
	Pagination paging.Pagination `json:"pagination"`
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err == nil {
		p, err = p.Validate(paging.MaxPerPage)
	}
	if err != nil {
		writeStoreError(w, err, "Error getting users")
		return
	}

	users, total, err := h.users.List(r.Context(), p.Offset(), p.PerPage)
	if err != nil {
		writeStoreError(w, err, "Error getting users")
		return
	}
	page := paging.NewPage(p, users, total)
	writeJSON(w, http.StatusOK, userListResponse{Users: page.Items, Pagination: page.Pagination})
}

func (h *AdminHandler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Error retrieving user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.Name == nil && req.Email == nil && req.Role == nil {
		writeError(w, http.StatusBadRequest, "No valid fields to update")
		return
	}
	if req.Role != nil && *req.Role != store.RoleUser && *req.Role != store.RoleAdmin {
		writeError(w, http.StatusBadRequest, "Role must be 'user' or 'admin'")
		return
	}

	updated, err := applyUserUpdate(r, h.users, chi.URLParam(r, "id"), req)
	if err != nil {
		writeStoreError(w, err, "Error updating user")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "User updated successfully", User: updated})
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err, "Error deleting user")
		return
	}
	if admin := UserFromContext(r.Context()); admin != nil {
		log.Info().Str("admin_id", admin.ID).Str("user_id", id).Msg("user deleted")
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User and associated data deleted successfully"})
}
