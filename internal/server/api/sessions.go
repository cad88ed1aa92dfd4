package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/paging"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// SessionHandler handles HTTP requests for recognition sessions.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(m *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: m}
}

// Routes returns the router mounted at /api/sessions. live, if not nil,
// serves GET /{id}/live.
func (h *SessionHandler) Routes(live http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.start)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/end", h.end)
	if live != nil {
		r.With(h.owned).Get("/{id}/live", live.ServeHTTP)
	}
	return r
}

type sessionListResponse struct {
	Sessions   []*store.Session  `json:"sessions"`
	Pagination paging.Pagination `json:"pagination"`
}

type sessionResponse struct {
	Message string         `json:"message,omitempty"`
	Session *store.Session `json:"session"`
}

// start handles POST /api/sessions.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	s, err := h.sessions.Start(r.Context(), u.ID)
	if err != nil {
		writeStoreError(w, err, "Failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Message: "Session started", Session: s})
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := pageParams(r)
	if err != nil {
		writeStoreError(w, err, "Failed to list sessions")
		return
	}

	page, err := h.sessions.ListForUser(r.Context(), u.ID, p)
	if err != nil {
		writeStoreError(w, err, "Failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: page.Items, Pagination: page.Pagination})
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	s, err := h.sessions.GetOwned(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		writeStoreError(w, err, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: s})
}

// end handles POST /api/sessions/{id}/end.
func (h *SessionHandler) end(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	s, err := h.sessions.EndOwned(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		writeStoreError(w, err, "Failed to end session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Message: "Session ended", Session: s})
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id"), u.ID); err != nil {
		writeStoreError(w, err, "Failed to delete session")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Session deleted successfully"})
}

// owned stops requests for sessions the caller does not own.
func (h *SessionHandler) owned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r)
		if !ok {
			return
		}
		if _, err := h.sessions.GetOwned(r.Context(), chi.URLParam(r, "id"), u.ID); err != nil {
			writeStoreError(w, err, "Failed to get session")
			return
		}
		next.ServeHTTP(w, r)
	})
}
