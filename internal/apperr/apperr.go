// Package apperr defines the error taxonomy reported by the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Code    string // machine-readable, e.g. "MISSING_FILE"
	Message string // safe to show to clients
	Status  int
	Details string // optional, safe to show to clients
	Cause   error  // logged, never rendered
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so errors.Is(err, ErrMissingFile)
// works on values derived through WithCause/WithDetails.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an error kind.
func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Cause = err
	return &c
}

// WithDetails returns a copy of e with client-visible details.
func (e *Error) WithDetails(details string) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithMessage returns a copy of e with a different client-visible message.
func (e *Error) WithMessage(message string) *Error {
	c := *e
	c.Message = message
	return &c
}

var (
	ErrMethodNotAllowed = New("METHOD_NOT_ALLOWED", "Method Not Allowed", http.StatusMethodNotAllowed)

	ErrMissingFile = New("MISSING_FILE", "No file provided.", http.StatusBadRequest)

	ErrPayloadTooLarge = New("PAYLOAD_TOO_LARGE", "File exceeds the maximum upload size.", http.StatusBadRequest)

	ErrUnsupportedContentType = New("UNSUPPORTED_CONTENT_TYPE", "Unsupported file type.", http.StatusBadRequest)

	ErrMalformedBody = New("MALFORMED_BODY", "Request body is not valid multipart/form-data.", http.StatusBadRequest)

	ErrUnauthorized = New("UNAUTHORIZED", "Unauthorized", http.StatusUnauthorized)

	ErrServerMisconfigured = New("SERVER_MISCONFIGURED", "Server storage is not configured.", http.StatusInternalServerError)

	ErrProviderFailure = New("PROVIDER_FAILURE", "Failed to upload image.", http.StatusInternalServerError)

	ErrInternal = New("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
)

// As extracts an *Error from err. Errors outside the taxonomy become ErrInternal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// Status returns the HTTP status err maps to.
func Status(err error) int {
	return As(err).Status
}

// Code returns the machine-readable code of err.
func Code(err error) string {
	return As(err).Code
}
