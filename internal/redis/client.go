package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Client is a go-redis client that satisfies the health check interface.
type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := &Client{redis.NewClient(opts)}
	if err := c.Ping(context.Background()); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Ping checks the connection, bounded by pingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// SessionKey namespaces the persisted client session per API base URL, so
// two environments sharing one redis do not overwrite each other.
func SessionKey(prefix, apiBaseURL string) string {
	return prefix + ":" + apiBaseURL
}
