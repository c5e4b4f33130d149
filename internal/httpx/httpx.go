// Package httpx holds the small JSON and error helpers shared by the API
// handler packages.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"smart-scheduler/internal/auth"
	"smart-scheduler/internal/scheduler"
	"smart-scheduler/internal/store"
)

const maxBody = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a single JSON object from the request body.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json", store.ErrInvalid)
	}
	return nil
}

// Owner returns the authenticated user id, or writes 401.
func Owner(w http.ResponseWriter, r *http.Request) (int, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return uid, true
}

// ID parses the {id} route parameter, or writes 400.
func ID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// TimeParam parses an optional RFC 3339 query parameter. Missing yields the
// zero time.
func TimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", store.ErrInvalid, name)
	}
	return t, nil
}

// Status maps a domain error to its HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalid),
		errors.Is(err, scheduler.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrCyclicDependency):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrPolicyUnsatisfiable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with its mapped status. Internal errors are logged and
// replaced by a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code := Status(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", code)
		return
	}
	if code == http.StatusNotFound {
		http.Error(w, "not found", code)
		return
	}
	http.Error(w, err.Error(), code)
}
