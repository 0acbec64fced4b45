package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/storage"
)

// Envelope is the standard response body for every endpoint
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes an envelope with the given status code
func WriteJSON(w http.ResponseWriter, status int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope)
}

// WriteSuccess writes a 200 success envelope
func WriteSuccess(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// WriteCreated writes a 201 success envelope
func WriteCreated(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// WriteErrorMessage writes a failure envelope with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}

// WriteValidationError writes a 400 failure envelope
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthenticated writes a 401 failure envelope
func WriteUnauthenticated(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a 403 failure envelope
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a 404 failure envelope
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a 409 failure envelope
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteLocked writes a 423 failure envelope
func WriteLocked(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusLocked, Envelope{Success: false, Message: message, Data: data})
}

// WriteTooManyRequests writes a 429 failure envelope
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteInternalError writes a generic 500 failure envelope. The underlying
// error is logged by the caller, never sent to the client.
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteDomainError maps the auth/storage error taxonomy to a status code and
// envelope. Unknown errors become a generic 500.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrRefreshNotActive),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrAccountDisabled):
		WriteUnauthenticated(w, err.Error())
	case errors.Is(err, auth.ErrAccountLocked):
		WriteLocked(w, err.Error(), nil)
	case errors.Is(err, auth.ErrForbidden):
		WriteForbidden(w, err.Error())
	case errors.Is(err, storage.ErrDuplicateEmail):
		WriteConflict(w, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		WriteInternalError(w)
	}
}
