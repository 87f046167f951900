package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	log "github.com/sirupsen/logrus"
)

const (
	errUnavailable = "service temporarily unavailable"
	errInternal    = "internal server error"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a service error to its HTTP status and client message.
// Infrastructure failures get a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, attendance.ErrImageDecode),
		errors.Is(err, attendance.ErrNoFaceDetected),
		errors.Is(err, attendance.ErrMultipleFaces),
		errors.Is(err, attendance.ErrInvalidInput):
		return http.StatusBadRequest, clientMessage(err)
	case errors.Is(err, attendance.ErrIdentityNotFound):
		return http.StatusNotFound, "student not found"
	case errors.Is(err, database.ErrRecordNotFound):
		return http.StatusNotFound, clientMessage(err)
	case errors.Is(err, database.ErrDuplicateStudent):
		return http.StatusConflict, "student ID already exists"
	case errors.Is(err, database.ErrDuplicateCheckIn):
		return http.StatusConflict, clientMessage(err)
	case errors.Is(err, database.ErrStoreUnavailable), errors.Is(err, attendance.ErrExtractorUnavailable):
		return http.StatusServiceUnavailable, errUnavailable
	default:
		return http.StatusInternalServerError, errInternal
	}
}

// clientMessage prefers the typed errors' own wording over the wrapped chain.
func clientMessage(err error) string {
	var fce *attendance.FaceCountError
	if errors.As(err, &fce) {
		return fce.Error()
	}
	var dup *attendance.DuplicateCheckInError
	if errors.As(err, &dup) {
		return dup.Error()
	}
	return err.Error()
}

// respondServiceError logs err and sends the mapped error response.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	entry := log.WithFields(log.Fields{
		"method": r.Method,
		"path":   sanitizeForLog(r.URL.Path),
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}
	respondError(w, status, message)
}
