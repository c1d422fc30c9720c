package handlers

import (
	"errors"
	"net/http"

	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/utils"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	utils.JSON(w, status, models.ErrorResponse{Code: code, Message: message})
}

// writeDomainError maps registry errors onto HTTP statuses. Anything not in
// the taxonomy is reported as a 500 without detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, models.ErrNotFound.Error(), "session not found")
	case errors.Is(err, models.ErrExpired):
		writeError(w, http.StatusGone, models.ErrExpired.Error(), "session has expired")
	case errors.Is(err, models.ErrResourceExhausted):
		writeError(w, http.StatusServiceUnavailable, models.ErrResourceExhausted.Error(), "no join codes available, try again later")
	case errors.Is(err, models.ErrInvalidSession):
		writeError(w, http.StatusConflict, models.ErrInvalidSession.Error(), "session is no longer active")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
