// Package common holds the JSON response helpers shared by the HTTP handlers
package common

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Error codes returned by the handlers
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeNotConnected   = "not_connected"
	ErrorCodeSendFailed     = "send_failed"
	ErrorCodeServerError    = "server_error"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets required headers for JSON responses
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteError sends a standardized error response with status
func WriteError(w http.ResponseWriter, status int, code string, description string) {
	// First set required headers
	SetJSONHeaders(w)

	response := ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	}

	// Set status code and write response
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		WriteJSONError(w, err)
		return
	}
}

// WriteJSON sends v as a JSON body with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)

	data, err := json.Marshal(v)
	if err != nil {
		WriteJSONError(w, err)
		return
	}

	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// WriteJSONError handles JSON encoding failures with a standardized response
func WriteJSONError(w http.ResponseWriter, err error) {
	// Headers must be set here since they weren't set by caller due to error
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)

	// Create error response manually since JSON encoding failed
	errResponse := []byte(`{"error":"server_error","error_description":"Failed to encode response"}`)
	if _, writeErr := w.Write(errResponse); writeErr != nil {
		return
	}
}
