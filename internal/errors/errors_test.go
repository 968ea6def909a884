package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: Conversation not found", NotFound("Conversation").Error())

	err := Network(errors.New("dial tcp 127.0.0.1:8000: connection refused"))
	assert.Contains(t, err.Error(), "NETWORK_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAppError_Builders(t *testing.T) {
	cause := errors.New("token has invalid claims")
	err := InvalidToken("Token is invalid or expired").
		WithCause(cause).
		WithDetails(map[string]string{"refresh": "blacklisted"}).
		WithStatus(http.StatusUnauthorized)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, map[string]string{"refresh": "blacklisted"}, err.Details)
	assert.Equal(t, http.StatusUnauthorized, err.Status)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err     *AppError
		code    ErrorCode
		message string
	}{
		{Unauthorized("Authentication credentials were not provided."), ErrCodeUnauthorized, "Authentication credentials were not provided."},
		{Forbidden("nope"), ErrCodeForbidden, "nope"},
		{SessionExpired(nil), ErrCodeSessionExpired, "Your session has expired. Please log in again."},
		{ValidationError("Message cannot be empty"), ErrCodeValidation, "Message cannot be empty"},
		{InvalidInput("conversation id", "must be a number"), ErrCodeInvalidInput, "Invalid conversation id: must be a number"},
		{MissingRequired("message"), ErrCodeMissingRequired, "message is required"},
		{NotFound("Conversation"), ErrCodeNotFound, "Conversation not found"},
		{RateLimitExceeded(), ErrCodeRateLimitExceeded, "Rate limit exceeded"},
		{Internal("could not issue tokens"), ErrCodeInternal, "could not issue tokens"},
		{Database(errors.New("boom")), ErrCodeDatabase, "Database error"},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.message, tc.err.Message)
		})
	}
}

func TestServer(t *testing.T) {
	err := Server(http.StatusBadGateway)
	assert.Equal(t, ErrCodeServer, err.Code)
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.NotContains(t, err.Message, "502")
}

func TestAsAppError(t *testing.T) {
	original := NotFound("Conversation")

	got, ok := AsAppError(fmt.Errorf("select conversation: %w", original))
	require.True(t, ok)
	assert.Same(t, original, got)

	got, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGetCodeAndIs(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", SessionExpired(nil))

	assert.Equal(t, ErrCodeSessionExpired, GetCode(wrapped))
	assert.True(t, Is(wrapped, ErrCodeSessionExpired))
	assert.False(t, Is(wrapped, ErrCodeUnauthorized))

	plain := errors.New("plain")
	assert.Equal(t, ErrCodeInternal, GetCode(plain))
	assert.False(t, Is(plain, ErrCodeInternal))
	assert.False(t, Is(nil, ErrCodeNetwork))
}
