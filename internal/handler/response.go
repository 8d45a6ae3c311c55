package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Every error response from the API has the same shape:
//
//	{"error": "Email already exists"}
//
// plus an optional machine-readable "code" for typed application errors. The
// frontend reads the "error" field and shows it to the user as-is.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/openworld/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`          // Human-readable description
	Code  string `json:"code,omitempty"` // Machine-readable error type (e.g., "validation_error")
}

// MessageResponse is the body of a successful write that returns no data.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and the status code must be set BEFORE writing the body. Once the
// encoder writes, the headers are sent and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror.ErrValidation, apperror.ErrUnauthorized,
// etc. This function maps those to 400, 401, etc. Anything that is not an
// *apperror.AppError is an internal failure: the client gets a 500 carrying
// the operation's generic fallback message, never the raw error (it may
// contain SQL or file paths).
//
// errors.As walks the whole chain, so the service can wrap an AppError with
// fmt.Errorf("...: %w", err) and it still maps correctly.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: fallback})
		return
	}

	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		writeJSON(w, status, ErrorResponse{Error: fallback})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: appErr.Message, Code: code})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeBadRequest sends a 400 for input the handler rejects before it ever
// reaches a service (malformed JSON, a non-numeric path id).
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation_error"})
}

// maxBodyBytes caps request bodies; the largest legitimate one is a project
// with a long description.
const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}
