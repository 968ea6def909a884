package api

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
)

const (
	LoginFailedMessage    = "Login failed. Please check your credentials."
	RegisterFailedMessage = "Registration failed. Please try again."
	PasswordMismatch      = "Passwords do not match"
)

// Requester is the authenticated transport. *gateway.Gateway implements it.
type Requester interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// SessionStore is the part of the session store the auth flows mutate.
type SessionStore interface {
	SetSession(ctx context.Context, user model.User, accessToken, refreshToken string) error
	SetUser(ctx context.Context, user model.User) error
	ClearSession(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	StoredUser(ctx context.Context) *model.User
	RefreshToken(ctx context.Context) string
}

type AuthService struct {
	api   Requester
	store SessionStore
}

func NewAuthService(api Requester, store SessionStore) *AuthService {
	return &AuthService{api: api, store: store}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if req.Password != req.PasswordConfirm {
		return nil, apperrors.ValidationError(PasswordMismatch)
	}

	var resp model.AuthResponse
	if err := s.api.Post(ctx, "/auth/register/", req, &resp); err != nil {
		log.Debug().Err(err).Str("username", req.Username).Msg("registration failed")
		return nil, userFacing(err, RegisterFailedMessage)
	}

	if err := s.startSession(ctx, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	var resp model.AuthResponse
	err := s.api.Post(ctx, "/auth/login/", model.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		log.Debug().Err(err).Str("username", username).Msg("login failed")
		return nil, userFacing(err, LoginFailedMessage)
	}

	if err := s.startSession(ctx, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (s *AuthService) startSession(ctx context.Context, resp model.AuthResponse) error {
	if resp.Tokens.Access == "" {
		return apperrors.New(apperrors.ErrCodeServer, NoResponseData)
	}
	if err := s.store.SetSession(ctx, resp.User, resp.Tokens.Access, resp.Tokens.Refresh); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "could not save session", err)
	}
	return nil
}

// Logout notifies the server so it can revoke the refresh token, then clears
// the local session whether or not the server call succeeded.
func (s *AuthService) Logout(ctx context.Context) error {
	if refresh := s.store.RefreshToken(ctx); refresh != "" {
		if err := s.api.Post(ctx, "/auth/logout/", model.RefreshRequest{Refresh: refresh}, nil); err != nil {
			log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	return s.store.ClearSession(ctx)
}

func (s *AuthService) Profile(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := s.api.Get(ctx, "/auth/user/", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Restore validates a persisted session at startup by fetching the profile.
// It returns nil without error when nobody is logged in. Network and server
// failures keep the stored session; any other failure clears it.
func (s *AuthService) Restore(ctx context.Context) (*model.User, error) {
	if !s.store.IsAuthenticated(ctx) {
		return nil, nil
	}

	user, err := s.Profile(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNetwork) || apperrors.Is(err, apperrors.ErrCodeServer) {
			return nil, err
		}
		log.Info().Err(err).Msg("stored session is no longer valid")
		if clearErr := s.store.ClearSession(ctx); clearErr != nil {
			log.Error().Err(clearErr).Msg("failed to clear invalid session")
		}
		return nil, nil
	}

	if err := s.store.SetUser(ctx, *user); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "could not save profile", err)
	}
	return user, nil
}

// userFacing keeps the error code but replaces the message with one that is
// safe to show as-is.
func userFacing(err error, fallback string) error {
	appErr := apperrors.New(apperrors.GetCode(err), apperrors.UserMessage(err, fallback)).WithCause(err)
	if orig, ok := apperrors.AsAppError(err); ok {
		appErr.Status = orig.Status
		appErr.Details = orig.Details
	}
	return appErr
}
