package config

import "time"

// devapi: postgres pool
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
	DBPingTimeout     = 5 * time.Second
)

// devapi: HTTP server. The write timeout leaves room for a slow model call
// inside ServerRequestTimeout.
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 90 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

const (
	CleanupJobInterval         = 5 * time.Minute
	DefaultChatRateLimitPerMin = 30
)

// talk2db client
const (
	DefaultSessionFileName = "session.json"
	SessionRedisKey        = "talk2db:session"
	RefreshTimeout         = 15 * time.Second
)
