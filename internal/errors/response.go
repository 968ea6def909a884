package errors

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// FromResponse classifies a non-2xx API response. 4xx bodies keep the most
// specific server message available; 5xx bodies are never shown to users.
func FromResponse(status int, body []byte) *AppError {
	if status >= http.StatusInternalServerError {
		return Server(status)
	}

	message := ExtractMessage(body)

	var code ErrorCode
	switch status {
	case http.StatusUnauthorized:
		code = ErrCodeUnauthorized
	case http.StatusForbidden:
		code = ErrCodeForbidden
	case http.StatusNotFound:
		code = ErrCodeNotFound
	case http.StatusConflict:
		code = ErrCodeConflict
	case http.StatusTooManyRequests:
		code = ErrCodeRateLimitExceeded
	default:
		code = ErrCodeValidation
	}

	if message == "" {
		message = http.StatusText(status)
	}
	return New(code, message).WithStatus(status)
}

// ExtractMessage pulls a human readable message out of an error body.
// Precedence: plain string body, "error", "message", "detail", then the first
// entry of the first field-level validation error (fields in sorted order).
func ExtractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		if strings.HasPrefix(trimmed, "<") {
			return ""
		}
		return trimmed
	}

	switch v := decoded.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"error", "message", "detail"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		return firstFieldError(v)
	case []any:
		return firstString(v)
	}
	return ""
}

func firstFieldError(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			if s := firstString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstString(values []any) string {
	for _, item := range values {
		if s, ok := item.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// UserMessage resolves err into a sentence suitable for display. Errors that
// carry a server-provided message keep it; network, server and unknown errors
// use the caller's generic fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return fallback
	}
	switch appErr.Code {
	case ErrCodeValidation, ErrCodeInvalidInput, ErrCodeMissingRequired,
		ErrCodeNotFound, ErrCodeConflict, ErrCodeAlreadyExists, ErrCodeForbidden,
		ErrCodeUnauthorized, ErrCodeRateLimitExceeded, ErrCodeSessionExpired:
		if appErr.Message != "" {
			return appErr.Message
		}
	}
	return fallback
}
