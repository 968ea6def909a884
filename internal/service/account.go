package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/repository"
	"github.com/saadkhi/Side/internal/token"
	"github.com/saadkhi/Side/internal/util"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8

	msgRequired         = "This field is required."
	msgInvalidUsername  = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgUsernameTooLong  = "Ensure this field has no more than 150 characters."
	msgInvalidEmail     = "Enter a valid email address."
	msgUsernameTaken    = "This username is already registered."
	msgEmailTaken       = "This email address is already registered."
	msgPasswordTooShort = "This password is too short. It must contain at least 8 characters."
	msgPasswordMismatch = "Passwords do not match"
	msgBadCredentials   = "Incorrect Credentials"
	msgTokenNotValid    = "Given token not valid for any token type"
	msgRefreshNotValid  = "Token is invalid or expired"
	msgInvalidToken     = "Invalid token."
	msgLoggedOut        = "Successfully logged out."
)

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

type AccountService struct {
	users   repository.UserRepository
	revoked repository.RevokedTokenRepository
	issuer  *token.Issuer
	rotate  bool
}

func NewAccountService(
	users repository.UserRepository,
	revoked repository.RevokedTokenRepository,
	issuer *token.Issuer,
	rotateRefreshTokens bool,
) *AccountService {
	return &AccountService{
		users:   users,
		revoked: revoked,
		issuer:  issuer,
		rotate:  rotateRefreshTokens,
	}
}

func (s *AccountService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	fields := validateRegistration(req)
	if fields.Empty() {
		if err := s.checkUnique(ctx, req, fields); err != nil {
			return nil, err
		}
	}
	if !fields.Empty() {
		return nil, apperrors.Fields(fields)
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("could not hash password").WithCause(err)
	}

	user, err := s.users.Create(ctx, model.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// lost a race with a concurrent registration
		return nil, apperrors.Fields(apperrors.FieldErrors{"username": {msgUsernameTaken}})
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Int64("userId", user.ID).Str("username", user.Username).Msg("user registered")
	return s.authResponse(user)
}

func validateRegistration(req model.RegisterRequest) apperrors.FieldErrors {
	fields := apperrors.FieldErrors{}

	switch {
	case req.Username == "":
		fields.Add("username", msgRequired)
	case len([]rune(req.Username)) > maxUsernameLength:
		fields.Add("username", msgUsernameTooLong)
	case !usernameRegex.MatchString(req.Username):
		fields.Add("username", msgInvalidUsername)
	}

	switch {
	case req.Email == "":
		fields.Add("email", msgRequired)
	case !util.IsValidEmail(req.Email):
		fields.Add("email", msgInvalidEmail)
	}

	switch {
	case req.Password == "":
		fields.Add("password", msgRequired)
	case len([]rune(req.Password)) < minPasswordLength:
		fields.Add("password", msgPasswordTooShort)
	}

	if req.Password != req.PasswordConfirm {
		fields.Add("password_confirm", msgPasswordMismatch)
	}

	return fields
}

func (s *AccountService) checkUnique(ctx context.Context, req model.RegisterRequest, fields apperrors.FieldErrors) error {
	existing, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return apperrors.Database(err)
	}
	if existing != nil {
		fields.Add("username", msgUsernameTaken)
	}

	existing, err = s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return apperrors.Database(err)
	}
	if existing != nil {
		fields.Add("email", msgEmailTaken)
	}
	return nil
}

func (s *AccountService) Login(ctx context.Context, username, password string) (*model.AuthResponse, error) {
	fields := apperrors.FieldErrors{}
	if strings.TrimSpace(username) == "" {
		fields.Add("username", msgRequired)
	}
	if password == "" {
		fields.Add("password", msgRequired)
	}
	if !fields.Empty() {
		return nil, apperrors.Fields(fields)
	}

	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil || !user.IsActive || !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.Fields(apperrors.FieldErrors{apperrors.NonFieldErrors: {msgBadCredentials}})
	}

	return s.authResponse(user)
}

func (s *AccountService) authResponse(user *model.User) (*model.AuthResponse, error) {
	pair, err := s.issuer.Pair(user.ID)
	if err != nil {
		return nil, apperrors.Internal("could not issue tokens").WithCause(err)
	}
	return &model.AuthResponse{User: *user, Tokens: pair}, nil
}

// Refresh trades a refresh token for a new access token. With rotation on,
// the old refresh token is revoked and a new one returned.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*model.RefreshResponse, error) {
	if refreshToken == "" {
		return nil, apperrors.Fields(apperrors.FieldErrors{"refresh": {msgRequired}})
	}

	claims, err := s.issuer.Parse(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.InvalidToken(msgRefreshNotValid).WithCause(err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if revoked {
		return nil, apperrors.InvalidToken("Token is blacklisted")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.InvalidToken(msgRefreshNotValid)
	}

	access, err := s.issuer.Access(user.ID)
	if err != nil {
		return nil, apperrors.Internal("could not issue tokens").WithCause(err)
	}
	resp := &model.RefreshResponse{Access: access}

	if s.rotate {
		if err := s.revoke(ctx, claims); err != nil {
			return nil, err
		}
		if resp.Refresh, err = s.issuer.Refresh(user.ID); err != nil {
			return nil, apperrors.Internal("could not issue tokens").WithCause(err)
		}
	}

	return resp, nil
}

// Logout blacklists the given refresh token. A missing token is not an error.
func (s *AccountService) Logout(ctx context.Context, userID int64, refreshToken string) (string, error) {
	if refreshToken == "" {
		return msgLoggedOut, nil
	}

	claims, err := s.issuer.Parse(refreshToken, model.TokenTypeRefresh)
	if err != nil || claims.UserID != userID {
		return "", apperrors.ValidationError(msgInvalidToken)
	}

	if err := s.revoke(ctx, claims); err != nil {
		return "", err
	}
	return msgLoggedOut, nil
}

func (s *AccountService) revoke(ctx context.Context, claims *token.Claims) error {
	err := s.revoked.Revoke(ctx, model.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
		RevokedAt: time.Now(),
	})
	if err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// Authenticate resolves an access token to its active user.
func (s *AccountService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.issuer.Parse(accessToken, model.TokenTypeAccess)
	if err != nil {
		return nil, apperrors.Unauthorized(msgTokenNotValid).WithCause(err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.Unauthorized("User not found")
	}
	return user, nil
}
