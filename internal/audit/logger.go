package audit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventRegister        EventType = "register"
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventLogout          EventType = "logout"
	EventTokenRefresh    EventType = "token_refresh"
	EventRefreshRejected EventType = "refresh_rejected"
	EventAuthFailure     EventType = "auth_failure"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	UserID    int64
	Username  string
	IP        string
	UserAgent string
	Details   map[string]any
}

// Log writes a security event at info level, tagged audit=security so it can
// be filtered out of the regular request log.
func Log(_ context.Context, event Event) {
	e := log.Info().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Timestamp()

	if event.UserID != 0 {
		e = e.Int64("user_id", event.UserID)
	}
	optional := map[string]string{
		"username":   event.Username,
		"ip":         event.IP,
		"user_agent": event.UserAgent,
	}
	for k, v := range optional {
		if v != "" {
			e = e.Str(k, v)
		}
	}
	for k, v := range event.Details {
		e = e.Interface(k, v)
	}
	e.Msg("security audit event")
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address without its port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
