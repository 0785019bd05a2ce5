package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "talentgate/pkg/domain-errors"
)

// Public error codes. Internal auth codes collapse onto these at the boundary.
const (
	publicUnauthorized   = "unauthorized"
	publicTokenExpired   = "token_expired"
	publicSessionInvalid = "session_invalid"
	publicForbidden      = "forbidden"
)

const (
	unauthorizedMessage   = "authentication required"
	tokenExpiredMessage   = "access token has expired"
	sessionInvalidMessage = "session is no longer valid"
	forbiddenMessage      = "you do not have access to this resource"
	unavailableMessage    = "authentication is temporarily unavailable"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates a domain error into an HTTP response.
// Authentication failures are collapsed to a small public vocabulary and
// authorization failures render identically, so a caller cannot tell a
// missing membership from a missing permission.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
		return
	}

	code := domainErr.Code
	switch {
	case dErrors.IsAuthentication(code):
		w.Header().Set("WWW-Authenticate", `Bearer realm="talentgate"`)
		WriteJSON(w, http.StatusUnauthorized, publicAuthenticationError(domainErr))
		return
	case dErrors.IsAuthorization(code):
		WriteJSON(w, http.StatusForbidden, ErrorResponse{Error: publicForbidden, ErrorDescription: forbiddenMessage})
		return
	case code == dErrors.CodeAuthInfrastructure:
		w.Header().Set("Retry-After", "5")
		WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: string(code), ErrorDescription: unavailableMessage})
		return
	}

	response := ErrorResponse{Error: DomainCodeToHTTPCode(code)}
	// Internal errors never echo their message.
	if code != dErrors.CodeInternal {
		response.ErrorDescription = domainErr.Message
	}
	WriteJSON(w, DomainCodeToHTTPStatus(code), response)
}

func publicAuthenticationError(e *dErrors.Error) ErrorResponse {
	switch e.Code {
	case dErrors.CodeTokenExpired:
		return ErrorResponse{Error: publicTokenExpired, ErrorDescription: tokenExpiredMessage}
	case dErrors.CodeSessionExpired, dErrors.CodeSessionRevoked:
		return ErrorResponse{Error: publicSessionInvalid, ErrorDescription: sessionInvalidMessage}
	case dErrors.CodeUnauthorized:
		// Raised by credential checks with a deliberately generic message.
		if e.Message != "" {
			return ErrorResponse{Error: publicUnauthorized, ErrorDescription: e.Message}
		}
	}
	return ErrorResponse{Error: publicUnauthorized, ErrorDescription: unauthorizedMessage}
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch {
	case dErrors.IsAuthentication(code):
		return http.StatusUnauthorized
	case dErrors.IsAuthorization(code):
		return http.StatusForbidden
	}
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeAuthInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the public error string.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch {
	case code == dErrors.CodeTokenExpired:
		return publicTokenExpired
	case code == dErrors.CodeSessionExpired, code == dErrors.CodeSessionRevoked:
		return publicSessionInvalid
	case dErrors.IsAuthentication(code):
		return publicUnauthorized
	case dErrors.IsAuthorization(code):
		return publicForbidden
	}
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeAuthInfrastructure:
		return string(dErrors.CodeAuthInfrastructure)
	default:
		return "internal_error"
	}
}
