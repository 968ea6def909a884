package handler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadkhi/Side/internal/api"
	"github.com/saadkhi/Side/internal/chat"
	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/gateway"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/session"
)

type client struct {
	store   *session.Store
	auth    *api.AuthService
	chat    *api.ChatService
	expired atomic.Int32
}

func newClient(t *testing.T, a *testAPI) *client {
	t.Helper()
	c := &client{store: session.NewStore(session.NewMemoryBackend())}
	gw := gateway.New(a.srv.URL+"/api", c.store, gateway.WithSessionExpiredHook(func() { c.expired.Add(1) }))
	c.auth = api.NewAuthService(gw, c.store)
	c.chat = api.NewChatService(gw)
	return c
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("login then first message creates a listed conversation", func(t *testing.T) {
		server := newTestAPI(t)
		server.register(t, "ada")
		c := newClient(t, server)

		user, err := c.auth.Login(ctx, "ada", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, "ada", user.Username)
		assert.True(t, c.store.IsAuthenticated(ctx))

		view := chat.NewView(c.chat, chat.RetainOnFailure)
		sent, err := view.Submit(ctx, "Which tables hold orders?")
		require.NoError(t, err)
		require.True(t, sent)

		id := view.CurrentID()
		require.NotZero(t, id)

		convs, err := c.chat.Conversations(ctx)
		require.NoError(t, err)
		ids := make([]int64, 0, len(convs))
		for _, conv := range convs {
			ids = append(ids, conv.ID)
		}
		assert.Contains(t, ids, id)
		assert.Equal(t, view.Conversations(), convs)

		msgs := view.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	})

	t.Run("stale access token is refreshed transparently", func(t *testing.T) {
		server := newTestAPI(t)
		server.register(t, "ada")
		c := newClient(t, server)
		_, err := c.auth.Login(ctx, "ada", "correct-horse")
		require.NoError(t, err)

		refresh := c.store.RefreshToken(ctx)
		require.NoError(t, c.store.UpdateTokens(ctx, "not-a-valid-token", ""))
		assert.Equal(t, refresh, c.store.RefreshToken(ctx))

		profile, err := c.auth.Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ada", profile.Username)
		assert.NotEqual(t, "not-a-valid-token", c.store.AccessToken(ctx))
		assert.Zero(t, c.expired.Load())
	})

	t.Run("revoked refresh token expires the session", func(t *testing.T) {
		server := newTestAPI(t)
		server.register(t, "ada")
		c := newClient(t, server)
		_, err := c.auth.Login(ctx, "ada", "correct-horse")
		require.NoError(t, err)

		// revoke the refresh token from a second device
		other := newClient(t, server)
		_, err = other.auth.Login(ctx, "ada", "correct-horse")
		require.NoError(t, err)
		require.NoError(t, other.store.UpdateTokens(ctx, other.store.AccessToken(ctx), c.store.RefreshToken(ctx)))
		require.NoError(t, other.auth.Logout(ctx))

		require.NoError(t, c.store.UpdateTokens(ctx, "not-a-valid-token", ""))
		_, err = c.chat.Conversations(ctx)

		assert.Equal(t, apperrors.ErrCodeSessionExpired, apperrors.GetCode(err))
		assert.False(t, c.store.IsAuthenticated(ctx))
		assert.Equal(t, int32(1), c.expired.Load())
	})

	t.Run("server validation messages reach the user", func(t *testing.T) {
		server := newTestAPI(t)
		server.register(t, "ada")
		c := newClient(t, server)

		_, err := c.auth.Login(ctx, "ada", "wrong-horse")
		assert.Equal(t, "Incorrect Credentials", apperrors.UserMessage(err, api.LoginFailedMessage))
		assert.False(t, c.store.IsAuthenticated(ctx))

		_, err = c.auth.Register(ctx, model.RegisterRequest{
			Username: "ada", Email: "ada2@example.com", Password: "correct-horse", PasswordConfirm: "correct-horse",
		})
		assert.Equal(t, "This username is already registered.", apperrors.UserMessage(err, api.RegisterFailedMessage))
	})

	t.Run("deleting the open conversation clears the view", func(t *testing.T) {
		server := newTestAPI(t)
		server.register(t, "ada")
		c := newClient(t, server)
		_, err := c.auth.Login(ctx, "ada", "correct-horse")
		require.NoError(t, err)

		view := chat.NewView(c.chat, chat.RetainOnFailure)
		_, err = view.Submit(ctx, "hello")
		require.NoError(t, err)
		id := view.CurrentID()

		require.NoError(t, view.Delete(ctx, id))
		assert.Zero(t, view.CurrentID())
		assert.Empty(t, view.Messages())
		assert.Empty(t, view.Conversations())

		_, err = c.chat.Conversation(ctx, id)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("logout clears the session", func(t *testing.T) {
		server := newTestAPI(t)
		server.register(t, "ada")
		c := newClient(t, server)
		_, err := c.auth.Login(ctx, "ada", "correct-horse")
		require.NoError(t, err)

		require.NoError(t, c.auth.Logout(ctx))
		assert.False(t, c.store.IsAuthenticated(ctx))

		_, err = c.chat.Conversations(ctx)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})
}
