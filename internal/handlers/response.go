package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		observability.Errorf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrEmptyPayload),
		errors.Is(err, models.ErrInvalidImage),
		errors.Is(err, models.ErrPathTraversal),
		errors.Is(err, models.ErrEmptyObjectKey),
		errors.Is(err, models.ErrInvalidHash):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPayloadTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrProtectedObject):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with its mapped status; server errors get a generic message
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		observability.WithContext(r.Context()).Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		respondError(w, status, "An error occurred while processing your request.")
		return
	}
	respondError(w, status, errorMessage(err))
}

// errorMessage returns the sentinel text for domain errors
func errorMessage(err error) string {
	var ge models.GalleryError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return err.Error()
}
