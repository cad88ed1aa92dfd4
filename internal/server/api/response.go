// Package api provides HTTP handlers for the Mudra REST API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/paging"
	"github.com/ayusman/mudra/internal/recognizer"
	"github.com/ayusman/mudra/internal/store"
)

// errorResponse represents an error response.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is returned by endpoints that only acknowledge a change.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Debug().Err(err).Msg("write response")
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeStoreError maps a service error onto a status code. fallback is the
// message used for unexpected failures; their details are only logged.
func writeStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrSessionEnded):
		writeError(w, http.StatusConflict, "Session has already ended")
	case errors.Is(err, paging.ErrInvalidPage),
		errors.Is(err, history.ErrInvalidCount),
		errors.Is(err, recognizer.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recognizer.ErrNoDetector):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a JSON request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// pageParams reads page and per_page query parameters. Missing values take
// their defaults; values that are not integers are rejected.
func pageParams(r *http.Request) (paging.Params, error) {
	p := paging.Params{Page: 1, PerPage: paging.DefaultPerPage}

	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, paging.ErrInvalidPage
		}
		p.Page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, paging.ErrInvalidPage
		}
		p.PerPage = n
	}
	return p, nil
}

// boolOr returns *b, or def when the field was absent.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
