package apiErrors

import (
	"encoding/json"
	"net/http"
)

// Error codes returned by the API
const (
	// Authentication errors (1000-1999)
	ErrInvalidToken          = "AUTH_001" // invalid token
	ErrExpiredToken          = "AUTH_002" // expired token
	ErrInsufficientPrivilege = "AUTH_003" // insufficient privileges

	// Validation errors (2000-2999)
	ErrInvalidRequest      = "VAL_001" // invalid request
	ErrMissingRequiredData = "VAL_002" // missing required data
	ErrInvalidFormat       = "VAL_003" // invalid data format

	// Pipeline errors (3000-3999)
	ErrPipelineRunning = "PIPE_001" // an export run is already in progress
	ErrPipelineFailed  = "PIPE_002" // the export run failed

	// Server errors (5000-5999)
	ErrInternalServer    = "SRV_001" // internal server error
	ErrDatabaseOperation = "SRV_002" // database operation error
	ErrExternalService   = "SRV_003" // external service error
)

// httpStatusMap maps error codes to HTTP status codes
var httpStatusMap = map[string]int{
	ErrInvalidToken:          http.StatusUnauthorized,
	ErrExpiredToken:          http.StatusUnauthorized,
	ErrInsufficientPrivilege: http.StatusForbidden,
	ErrInvalidRequest:        http.StatusBadRequest,
	ErrMissingRequiredData:   http.StatusBadRequest,
	ErrInvalidFormat:         http.StatusBadRequest,
	ErrPipelineRunning:       http.StatusConflict,
	ErrPipelineFailed:        http.StatusBadGateway,
	ErrInternalServer:        http.StatusInternalServerError,
	ErrDatabaseOperation:     http.StatusInternalServerError,
	ErrExternalService:       http.StatusBadGateway,
}

// APIError is the standardized API error body
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes the standardized error to the HTTP response
func WriteError(w http.ResponseWriter, code string, message string, details any) {
	status, exists := httpStatusMap[code]
	if !exists {
		status = http.StatusInternalServerError
	}

	apiErr := APIError{
		Code:    code,
		Message: message,
		Details: details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErr)
}
