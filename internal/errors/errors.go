package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken   ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired   ErrorCode = "TOKEN_EXPIRED"
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"

	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Only produced on the client, from what the transport observed.
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	ErrCodeServer  ErrorCode = "SERVER_ERROR"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is the error type used on both sides of the API. Message is safe
// to show to a user. Status is the HTTP status the error maps to or was read
// from; zero means derive it from Code.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Status  int       `json:"-"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
}

func (e *AppError) Unwrap() error { return e.cause }

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithStatus(status int) *AppError {
	e.Status = status
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

// auth

func Unauthorized(message string) *AppError { return New(ErrCodeUnauthorized, message) }

func Forbidden(message string) *AppError { return New(ErrCodeForbidden, message) }

func InvalidToken(message string) *AppError { return New(ErrCodeInvalidToken, message) }

// SessionExpired reports that the stored session was dropped because its
// refresh token was rejected.
func SessionExpired(cause error) *AppError {
	return Wrap(ErrCodeSessionExpired, "Your session has expired. Please log in again.", cause)
}

// request

func ValidationError(message string) *AppError { return New(ErrCodeValidation, message) }

func InvalidInput(field, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

// transport

func Network(cause error) *AppError {
	return Wrap(ErrCodeNetwork, "Unable to reach the server. Please check your connection.", cause)
}

func Server(status int) *AppError {
	return New(ErrCodeServer, "The server encountered an error. Please try again later.").WithStatus(status)
}

// server side

func Internal(message string) *AppError { return New(ErrCodeInternal, message) }

func Database(cause error) *AppError { return Wrap(ErrCodeDatabase, "Database error", cause) }

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the code of an AppError anywhere in err's chain, or
// ErrCodeInternal.
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

func Is(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
