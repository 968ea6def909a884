package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/model"
)

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldUser         = "user"
)

// RedisBackend stores the session as one hash, so the three values are
// written and removed together.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) Load(ctx context.Context) (*model.Session, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sess := &model.Session{
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
	}
	if raw := fields[fieldUser]; raw != "" {
		var user model.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.Warn().Err(err).Str("key", b.key).Msg("session: stored user unreadable")
		} else {
			sess.User = &user
		}
	}
	return sess, nil
}

func (b *RedisBackend) Save(ctx context.Context, s *model.Session) error {
	values := map[string]any{
		fieldAccessToken:  s.AccessToken,
		fieldRefreshToken: s.RefreshToken,
	}
	if s.User != nil {
		user, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		values[fieldUser] = string(user)
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		pipe.HSet(ctx, b.key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context) error {
	if err := b.client.Del(ctx, b.key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
