package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/saadkhi/Side/internal/model"
)

// RevokedTokenRepository is the refresh-token blacklist.
type RevokedTokenRepository interface {
	Revoke(ctx context.Context, token model.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type revokedTokenRepo struct {
	db *sqlx.DB
}

func NewRevokedTokenRepository(db *sqlx.DB) RevokedTokenRepository {
	return &revokedTokenRepo{db: db}
}

func (r *revokedTokenRepo) Revoke(ctx context.Context, token model.RevokedToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, token.JTI, token.UserID, token.ExpiresAt)
	return err
}

func (r *revokedTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti)
	return exists, err
}

func (r *revokedTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const revokedKeyPrefix = "revoked:"

type redisRevokedTokenRepo struct {
	client *redis.Client
}

// NewRedisRevokedTokenRepository keeps one key per revoked jti that expires
// together with the token, so DeleteExpired has nothing to do.
func NewRedisRevokedTokenRepository(client *redis.Client) RevokedTokenRepository {
	return &redisRevokedTokenRepo{client: client}
}

func (r *redisRevokedTokenRepo) Revoke(ctx context.Context, token model.RevokedToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+token.JTI, fmt.Sprint(token.UserID), ttl).Err()
}

func (r *redisRevokedTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisRevokedTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
