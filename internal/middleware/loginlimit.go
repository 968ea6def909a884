package middleware

import (
	"net/http"

	"github.com/saadkhi/Side/internal/audit"
	apperrors "github.com/saadkhi/Side/internal/errors"
)

const loginMaxAttempts = 5

const msgTooManyLogins = "Too many login attempts. Please try again later."

// LoginLimitMiddleware throttles credential endpoints per client IP.
type LoginLimitMiddleware struct {
	limiter     Limiter
	maxAttempts int
}

func NewLoginLimitMiddleware(limiter Limiter) *LoginLimitMiddleware {
	return &LoginLimitMiddleware{limiter: limiter, maxAttempts: loginMaxAttempts}
}

func (m *LoginLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)

		allowed, _, _ := m.limiter.Check(r.Context(), "login:"+ip, m.maxAttempts)
		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			w.Header().Set("Retry-After", "60")
			writeError(w, apperrors.New(apperrors.ErrCodeRateLimitExceeded, msgTooManyLogins))
			return
		}

		next.ServeHTTP(w, r)
	})
}
