package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/config"
	"github.com/saadkhi/Side/internal/middleware"
	"github.com/saadkhi/Side/internal/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Deps struct {
	Accounts *service.AccountService
	Chat     *service.ChatService
	// Limiter backs the per-user chat limit and the login throttle.
	Limiter       middleware.Limiter
	ChatRateLimit int
	// Checks are pinged by /health. Nil entries are skipped.
	Checks       map[string]Pinger
	IsProduction bool
}

// NewRouter builds the API: /health plus every endpoint under /api.
func NewRouter(deps Deps) chi.Router {
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter()
	}

	authMiddleware := middleware.NewAuthMiddleware(deps.Accounts)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(deps.Limiter, deps.ChatRateLimit)
	loginLimitMiddleware := middleware.NewLoginLimitMiddleware(deps.Limiter)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(deps.IsProduction)

	authHandler := NewAuthHandler(deps.Accounts, authMiddleware.Handler, loginLimitMiddleware.Handler)
	chatHandler := NewChatHandler(deps.Chat)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler(deps.Checks))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.With(rateLimitMiddleware.Handler).Mount("/chat", chatHandler.Routes())
			r.Mount("/conversations", chatHandler.ConversationRoutes())
		})
	})

	return r
}

// GET /health
func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))

		for name, p := range checks {
			if p == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("check", name).Msg("health check failed")
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status":    state,
			"checks":    results,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
