package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/acquisitions-api/internal/common"
	"github.com/isdelr/acquisitions-api/internal/httpx"
	"github.com/rs/zerolog/log"
)

// writeServiceError maps a service failure to a status with a fixed message.
// The error itself is only logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, common.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "Email already exists.")
	case errors.Is(err, common.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid email or password.")
	case errors.Is(err, common.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, common.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, common.ErrValidation):
		writeInvalid(w, map[string]string{"body": "is invalid"})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to " + action)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// writeAccessError answers a rejected access check with message for 403s.
func writeAccessError(w http.ResponseWriter, err error, forbidden string) {
	if errors.Is(err, common.ErrUnauthorized) {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	httpx.WriteError(w, http.StatusForbidden, forbidden)
}

// userIDParam parses {id} as a positive integer, writing the 400 itself.
func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}
