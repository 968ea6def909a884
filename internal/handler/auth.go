package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/audit"
	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/httputil"
	"github.com/saadkhi/Side/internal/middleware"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/service"
)

type AuthHandler struct {
	accounts       *service.AccountService
	authMiddleware func(http.Handler) http.Handler
	loginLimit     func(http.Handler) http.Handler
}

func NewAuthHandler(
	accounts *service.AccountService,
	authMiddleware func(http.Handler) http.Handler,
	loginLimit func(http.Handler) http.Handler,
) *AuthHandler {
	return &AuthHandler{
		accounts:       accounts,
		authMiddleware: authMiddleware,
		loginLimit:     loginLimit,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.loginLimit != nil {
			r.Use(h.loginLimit)
		}
		r.Post("/register/", h.Register)
		r.Post("/login/", h.Login)
	})
	r.Post("/token/refresh/", h.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Post("/logout/", h.Logout)
		r.Get("/user/", h.User)
	})

	return r
}

// POST /api/auth/register/
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventRegister,
		UserID:   resp.User.ID,
		Username: resp.User.Username,
	})
	writeJSON(w, http.StatusCreated, resp)
}

// POST /api/auth/login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeValidation) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure, Username: req.Username})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLoginSuccess,
		UserID:   resp.User.ID,
		Username: resp.User.Username,
	})
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/auth/logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req model.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.accounts.Logout(r.Context(), user.ID, req.Refresh)
	if err != nil {
		log.Warn().Err(err).Int64("userId", user.ID).Msg("logout rejected")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, UserID: user.ID, Username: user.Username})
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// GET /api/auth/user/
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.GetUser(r.Context()))
}

// POST /api/auth/token/refresh/
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeInvalidToken) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRefreshRejected,
				Details: map[string]interface{}{"reason": err.Error()},
			})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventTokenRefresh})
	writeJSON(w, http.StatusOK, resp)
}
