// Package errors maps session and adapter errors to structured HTTP
// responses for the local control surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pscheid92/pxsession/internal/domain"
)

// ErrorType is the category of an error, used for metrics and responses.
type ErrorType string

const (
	TypeValidation ErrorType = "validation" // HTTP 400
	TypeNotFound   ErrorType = "not_found"  // HTTP 404
	TypeConflict   ErrorType = "conflict"   // HTTP 409
	TypeInternal   ErrorType = "internal"   // HTTP 500
	TypeExternal   ErrorType = "external"   // HTTP 502
)

// Error is a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }
func NotFoundError(message string) *Error   { return newError(TypeNotFound, message, nil) }

// ConflictError reports an operation that is illegal in the current state.
func ConflictError(message string, cause error) *Error {
	return newError(TypeConflict, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error. Structured
// errors pass through; session sentinels map to their category; everything
// else is internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	if structuredErr, ok := errors.AsType[*Error](err); ok {
		return structuredErr
	}

	if terr, ok := errors.AsType[*domain.TransitionError](err); ok {
		return ConflictError(terr.Error(), err).
			WithField("operation", terr.Op).
			WithField("state", terr.From.String())
	}

	switch {
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return ConflictError("invalid state transition", err)
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrDecode):
		return ExternalError("push service call failed", err)
	}

	return InternalError("internal server error", err)
}
