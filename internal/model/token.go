package model

import (
	"time"
)

// RevokedToken is a blacklisted refresh token, kept until it would have expired.
type RevokedToken struct {
	JTI       string    `db:"jti" json:"jti"`
	UserID    int64     `db:"user_id" json:"userId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	RevokedAt time.Time `db:"revoked_at" json:"revokedAt"`
}
