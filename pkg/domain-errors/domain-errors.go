package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
)

// Authentication failures. Every one of these renders as 401 at the HTTP boundary.
const (
	CodeTokenMissing          Code = "token_missing"
	CodeTokenMalformed        Code = "token_malformed"
	CodeTokenExpired          Code = "token_expired"
	CodeTokenSignatureInvalid Code = "token_signature_invalid"
	CodeTokenTypeMismatch     Code = "token_type_mismatch"
	CodeSessionNotFound       Code = "session_not_found"
	CodeSessionExpired        Code = "session_expired"
	CodeSessionRevoked        Code = "session_revoked"
	CodeUserNotFound          Code = "user_not_found"
	CodeUserInactive          Code = "user_inactive"
	CodeEmailUnverified       Code = "email_unverified"
)

// Authorization failures. Both render identically to external callers.
const (
	CodeOrganizationAccessDenied Code = "organization_access_denied"
	CodeInsufficientPermission   Code = "insufficient_permission"
)

// CodeAuthInfrastructure marks a repository or network failure observed while
// authenticating or authorizing. It is never a security denial.
const CodeAuthInfrastructure Code = "auth_infrastructure_error"

// IsAuthentication reports whether the code belongs to the authentication taxonomy.
func IsAuthentication(code Code) bool {
	switch code {
	case CodeUnauthorized,
		CodeTokenMissing, CodeTokenMalformed, CodeTokenExpired, CodeTokenSignatureInvalid, CodeTokenTypeMismatch,
		CodeSessionNotFound, CodeSessionExpired, CodeSessionRevoked,
		CodeUserNotFound, CodeUserInactive, CodeEmailUnverified:
		return true
	}
	return false
}

// IsAuthorization reports whether the code belongs to the authorization taxonomy.
func IsAuthorization(code Code) bool {
	switch code {
	case CodeForbidden, CodeOrganizationAccessDenied, CodeInsufficientPermission:
		return true
	}
	return false
}

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in the chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
