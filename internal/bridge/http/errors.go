package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/pkg/httpx"
)

// OAuth2Error represents a standard OAuth2 error response per RFC 6749.
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this OAuth2Error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_request",
		Description: "the request is malformed or missing required parameters",
	}

	// Client mismatches on the token endpoint come back as 400 so browser
	// callers see a JSON body rather than a challenge.
	ErrInvalidClient = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_client",
		Description: "client authentication failed",
	}

	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_grant",
		Description: "the authorization code or refresh token is invalid or expired",
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        "unsupported_grant_type",
		Description: "the grant type is not supported",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_token",
		Description: "the access token is invalid or expired",
	}

	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        "server_error",
		Description: "an unexpected error occurred",
	}
)

// mapServiceError converts service sentinels into wire errors. Anything
// unrecognised becomes server_error so internal faults never leak.
func mapServiceError(err error) *OAuth2Error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return ErrInvalidRequest
	case errors.Is(err, service.ErrInvalidGrant):
		return ErrInvalidGrant
	case errors.Is(err, service.ErrInvalidClient):
		return ErrInvalidClient
	case errors.Is(err, service.ErrUnsupportedGrant):
		return ErrUnsupportedGrantType
	default:
		return ErrServerError
	}
}
