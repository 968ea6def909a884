package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadkhi/Side/internal/config"
	"github.com/saadkhi/Side/internal/model"
)

func newRedisLimiter(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimiter(client), mr
}

func TestLimiters(t *testing.T) {
	ctx := context.Background()

	limiters := map[string]func(t *testing.T) Limiter{
		"memory": func(t *testing.T) Limiter { return NewRateLimiter() },
		"redis": func(t *testing.T) Limiter {
			rl, _ := newRedisLimiter(t)
			return rl
		},
	}

	for name, newLimiter := range limiters {
		t.Run(name, func(t *testing.T) {
			t.Run("allows requests under limit", func(t *testing.T) {
				limiter := newLimiter(t)
				for i := 0; i < 5; i++ {
					allowed, remaining, _ := limiter.Check(ctx, "user:1", 10)
					assert.True(t, allowed)
					assert.Equal(t, 10-i-1, remaining)
				}
			})

			t.Run("blocks requests over limit", func(t *testing.T) {
				limiter := newLimiter(t)
				for i := 0; i < 5; i++ {
					limiter.Check(ctx, "user:2", 5)
				}
				allowed, remaining, resetAt := limiter.Check(ctx, "user:2", 5)
				assert.False(t, allowed)
				assert.Equal(t, 0, remaining)
				assert.Greater(t, resetAt, time.Now().Unix())
			})

			t.Run("tracks keys separately", func(t *testing.T) {
				limiter := newLimiter(t)
				for i := 0; i < 5; i++ {
					limiter.Check(ctx, "user:a", 5)
				}
				allowed, _, _ := limiter.Check(ctx, "user:b", 5)
				assert.True(t, allowed)
			})
		})
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter()
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		allowed, _, _ := limiter.Check(ctx, "user:1", 3)
		require.True(t, allowed)
	}
	allowed, _, _ := limiter.Check(ctx, "user:1", 3)
	assert.False(t, allowed)

	clock = clock.Add(windowDuration + time.Second)
	allowed, remaining, _ := limiter.Check(ctx, "user:1", 3)
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
}

func TestRedisRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("window slides", func(t *testing.T) {
		limiter, _ := newRedisLimiter(t)
		clock := time.Now()
		limiter.now = func() time.Time { return clock }

		for i := 0; i < 2; i++ {
			allowed, _, _ := limiter.Check(ctx, "user:1", 2)
			require.True(t, allowed)
		}
		allowed, _, _ := limiter.Check(ctx, "user:1", 2)
		assert.False(t, allowed)

		clock = clock.Add(rateLimitWindow + time.Second)
		allowed, _, _ = limiter.Check(ctx, "user:1", 2)
		assert.True(t, allowed)
	})

	t.Run("fails open when redis is down", func(t *testing.T) {
		limiter, mr := newRedisLimiter(t)
		mr.Close()

		allowed, remaining, _ := limiter.Check(ctx, "user:1", 3)
		assert.True(t, allowed)
		assert.Equal(t, 2, remaining)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows request without user", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 1).Handler(ok)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("sets rate limit headers", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 100).Handler(ok)
		ctx := WithUser(context.Background(), &model.User{ID: 1})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/", nil).WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 2).Handler(ok)
		ctx := WithUser(context.Background(), &model.User{ID: 2, Username: "ada"})

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/", nil).WithContext(ctx))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/", nil).WithContext(ctx))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"error":"Rate limit exceeded","code":"RATE_LIMIT_EXCEEDED"}`, rec.Body.String())
	})

	t.Run("uses default limit when unset", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 0).Handler(ok)
		ctx := WithUser(context.Background(), &model.User{ID: 3})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/", nil).WithContext(ctx))

		assert.Equal(t, strconv.Itoa(config.DefaultChatRateLimitPerMin), rec.Header().Get("X-RateLimit-Limit"))
	})
}

func TestLoginLimitMiddleware(t *testing.T) {
	handler := NewLoginLimitMiddleware(NewRateLimiter()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	attempt := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login/", nil)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < loginMaxAttempts; i++ {
		require.Equal(t, http.StatusOK, attempt("10.0.0.1:5000").Code)
	}

	rec := attempt("10.0.0.1:5000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many login attempts")

	assert.Equal(t, http.StatusOK, attempt("10.0.0.2:5000").Code)
}
