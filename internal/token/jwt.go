package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/saadkhi/Side/internal/model"
)

var (
	ErrInvalid   = errors.New("token is invalid")
	ErrExpired   = errors.New("token is expired")
	ErrWrongType = errors.New("wrong token type")
)

type Claims struct {
	UserID    int64           `json:"user_id"`
	TokenType model.TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies the HS256 access/refresh token pair.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *Issuer) Pair(userID int64) (model.TokenPair, error) {
	refresh, err := i.sign(userID, model.TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}
	access, err := i.Access(userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) Access(userID int64) (string, error) {
	return i.sign(userID, model.TokenTypeAccess, i.accessTTL)
}

func (i *Issuer) Refresh(userID int64) (string, error) {
	return i.sign(userID, model.TokenTypeRefresh, i.refreshTTL)
}

func (i *Issuer) sign(userID int64, typ model.TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:    userID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies signature, expiry and type.
func (i *Issuer) Parse(tokenString string, want model.TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.TokenType != want {
		return nil, ErrWrongType
	}
	if claims.ID == "" || claims.UserID == 0 {
		return nil, ErrInvalid
	}
	return claims, nil
}
