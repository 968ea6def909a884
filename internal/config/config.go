package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"

	FailurePolicyRetain   = "retain"
	FailurePolicyRollback = "rollback"
)

// Config configures the talk2db client.
type Config struct {
	APIBaseURL            string `env:"TALK2DB_API_URL" envDefault:"http://localhost:8000/api"`
	SessionBackend        string `env:"TALK2DB_SESSION_BACKEND" envDefault:"file"`
	SessionFile           string `env:"TALK2DB_SESSION_FILE"`
	RedisURL              string `env:"TALK2DB_REDIS_URL"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	FailurePolicy         string `env:"TALK2DB_FAILURE_POLICY" envDefault:"retain"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"warn"`
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SessionPath returns the session file location, defaulting to the user's
// config directory.
func (c *Config) SessionPath() (string, error) {
	if c.SessionFile != "" {
		return c.SessionFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "talk2db", DefaultSessionFileName), nil
}

func (c *Config) Validate() error {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("TALK2DB_API_URL must be an absolute URL, got %q", c.APIBaseURL)
	}

	switch c.SessionBackend {
	case SessionBackendFile, SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("TALK2DB_REDIS_URL is required when TALK2DB_SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown TALK2DB_SESSION_BACKEND %q (want file, redis or memory)", c.SessionBackend)
	}

	switch c.FailurePolicy {
	case FailurePolicyRetain, FailurePolicyRollback:
	default:
		return fmt.Errorf("unknown TALK2DB_FAILURE_POLICY %q (want retain or rollback)", c.FailurePolicy)
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &cfg, nil
}

// ServerConfig configures the reference API server.
type ServerConfig struct {
	Port                  int    `env:"PORT" envDefault:"8000"`
	DatabaseURL           string `env:"DATABASE_URL"`
	RedisURL              string `env:"REDIS_URL"`
	JWTSecret             string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"5"`
	RefreshTokenTTLHours  int    `env:"REFRESH_TOKEN_TTL_HOURS" envDefault:"24"`
	RotateRefreshTokens   bool   `env:"ROTATE_REFRESH_TOKENS" envDefault:"false"`
	ModelURL              string `env:"MODEL_URL"`
	ModelToken            string `env:"MODEL_TOKEN"`
	ModelTimeoutSeconds   int    `env:"MODEL_TIMEOUT_SECONDS" envDefault:"60"`
	ChatRateLimitPerMin   int    `env:"CHAT_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHours) * time.Hour
}

func (c *ServerConfig) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *ServerConfig) Validate(isProduction bool) error {
	if c.AccessTokenTTLMinutes <= 0 || c.RefreshTokenTTLHours <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if c.DatabaseURL == "" {
			log.Warn().Msg("DATABASE_URL is empty in production: conversations are kept in memory only")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	if c.ModelURL == "" {
		log.Warn().Msg("MODEL_URL is empty: chat answers use the fallback template")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func LoadServer() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
