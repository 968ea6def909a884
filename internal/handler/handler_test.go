package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/repository"
	"github.com/saadkhi/Side/internal/service"
	"github.com/saadkhi/Side/internal/token"
)

const testSecret = "handler-test-secret-long-enough-for-hs256"

type sqlResponder struct{}

func (sqlResponder) Respond(ctx context.Context, prompt string) (string, error) {
	return "SELECT 1; -- " + prompt, nil
}

type testAPI struct {
	srv    *httptest.Server
	repos  repository.Repositories
	issuer *token.Issuer
}

func newTestAPI(t *testing.T, mutate ...func(*Deps)) *testAPI {
	t.Helper()
	repos := repository.NewMemory()
	issuer := token.NewIssuer(testSecret, 5*time.Minute, 24*time.Hour)

	deps := Deps{
		Accounts:      service.NewAccountService(repos.Users, repos.RevokedTokens, issuer, false),
		Chat:          service.NewChatService(repos.Conversations, repos.Messages, sqlResponder{}),
		ChatRateLimit: 100,
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, repos: repos, issuer: issuer}
}

func (a *testAPI) do(t *testing.T, method, path, accessToken string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (a *testAPI) register(t *testing.T, username string) model.AuthResponse {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/auth/register/", "", model.RegisterRequest{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var resp model.AuthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestAuthHandler(t *testing.T) {
	t.Run("register returns user and tokens", func(t *testing.T) {
		api := newTestAPI(t)
		status, body := api.do(t, http.MethodPost, "/api/auth/register/", "", map[string]string{
			"username":         "ada",
			"email":            "ada@example.com",
			"password":         "correct-horse",
			"password_confirm": "correct-horse",
			"first_name":       "Ada",
		})

		require.Equal(t, http.StatusCreated, status)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(body, &resp))

		user := resp["user"].(map[string]any)
		assert.Equal(t, "ada", user["username"])
		assert.Equal(t, "Ada", user["first_name"])
		assert.NotContains(t, user, "password_hash")
		tokens := resp["tokens"].(map[string]any)
		assert.NotEmpty(t, tokens["access"])
		assert.NotEmpty(t, tokens["refresh"])
	})

	t.Run("duplicate registration returns field errors", func(t *testing.T) {
		api := newTestAPI(t)
		api.register(t, "ada")

		status, body := api.do(t, http.MethodPost, "/api/auth/register/", "", model.RegisterRequest{
			Username: "ada", Email: "other@example.com", Password: "correct-horse", PasswordConfirm: "correct-horse",
		})

		assert.Equal(t, http.StatusBadRequest, status)
		assert.JSONEq(t, `{"username":["This username is already registered."]}`, string(body))
	})

	t.Run("login", func(t *testing.T) {
		api := newTestAPI(t)
		api.register(t, "ada")

		status, body := api.do(t, http.MethodPost, "/api/auth/login/", "", model.LoginRequest{Username: "ada", Password: "correct-horse"})
		require.Equal(t, http.StatusOK, status)
		var resp model.AuthResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "ada", resp.User.Username)

		status, body = api.do(t, http.MethodPost, "/api/auth/login/", "", model.LoginRequest{Username: "ada", Password: "wrong-horse"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.JSONEq(t, `{"non_field_errors":["Incorrect Credentials"]}`, string(body))
	})

	t.Run("malformed body", func(t *testing.T) {
		api := newTestAPI(t)
		req, err := http.NewRequest(http.MethodPost, api.srv.URL+"/api/auth/login/", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("user requires a valid token", func(t *testing.T) {
		api := newTestAPI(t)
		auth := api.register(t, "ada")

		status, _ := api.do(t, http.MethodGet, "/api/auth/user/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = api.do(t, http.MethodGet, "/api/auth/user/", auth.Tokens.Refresh, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "refresh token is not an access token")

		status, body := api.do(t, http.MethodGet, "/api/auth/user/", auth.Tokens.Access, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t,
			`{"id":1,"username":"ada","email":"ada@example.com","first_name":"","last_name":""}`,
			string(body))
	})

	t.Run("refresh and logout", func(t *testing.T) {
		api := newTestAPI(t)
		auth := api.register(t, "ada")

		status, body := api.do(t, http.MethodPost, "/api/auth/token/refresh/", "", model.RefreshRequest{Refresh: auth.Tokens.Refresh})
		require.Equal(t, http.StatusOK, status)
		var refreshed model.RefreshResponse
		require.NoError(t, json.Unmarshal(body, &refreshed))
		assert.NotEmpty(t, refreshed.Access)

		status, body = api.do(t, http.MethodPost, "/api/auth/logout/", refreshed.Access, model.RefreshRequest{Refresh: auth.Tokens.Refresh})
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"message":"Successfully logged out."}`, string(body))

		status, _ = api.do(t, http.MethodPost, "/api/auth/token/refresh/", "", model.RefreshRequest{Refresh: auth.Tokens.Refresh})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("logout with invalid token", func(t *testing.T) {
		api := newTestAPI(t)
		auth := api.register(t, "ada")

		status, body := api.do(t, http.MethodPost, "/api/auth/logout/", auth.Tokens.Access, model.RefreshRequest{Refresh: "garbage"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "Invalid token.")
	})

	t.Run("login attempts are throttled per ip", func(t *testing.T) {
		api := newTestAPI(t)

		var last int
		for i := 0; i < 6; i++ {
			last, _ = api.do(t, http.MethodPost, "/api/auth/login/", "", model.LoginRequest{Username: "ada", Password: "nope"})
		}
		assert.Equal(t, http.StatusTooManyRequests, last)
	})
}

func TestChatHandler(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		api := newTestAPI(t)
		auth := api.register(t, "ada")

		status, body := api.do(t, http.MethodPost, "/api/chat/", auth.Tokens.Access, model.ChatRequest{Message: "  "})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.JSONEq(t, `{"error":"Message cannot be empty","code":"VALIDATION_ERROR"}`, string(body))
	})

	t.Run("requires auth", func(t *testing.T) {
		api := newTestAPI(t)
		status, _ := api.do(t, http.MethodPost, "/api/chat/", "", model.ChatRequest{Message: "hi"})
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = api.do(t, http.MethodGet, "/api/conversations/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("conversation lifecycle", func(t *testing.T) {
		api := newTestAPI(t)
		auth := api.register(t, "ada")
		access := auth.Tokens.Access

		status, body := api.do(t, http.MethodPost, "/api/chat/", access, model.ChatRequest{Message: "How many orders?"})
		require.Equal(t, http.StatusOK, status, string(body))
		var sent model.ChatResponse
		require.NoError(t, json.Unmarshal(body, &sent))
		assert.Equal(t, "SELECT 1; -- How many orders?", sent.Response)
		require.NotZero(t, sent.ConversationID)

		status, body = api.do(t, http.MethodGet, "/api/conversations/", access, nil)
		require.Equal(t, http.StatusOK, status)
		var convs []model.Conversation
		require.NoError(t, json.Unmarshal(body, &convs))
		require.Len(t, convs, 1)
		assert.Equal(t, sent.ConversationID, convs[0].ID)
		assert.Equal(t, "How many orders?", convs[0].Title)

		path := "/api/conversations/" + strconv.FormatInt(sent.ConversationID, 10) + "/"
		status, body = api.do(t, http.MethodGet, path, access, nil)
		require.Equal(t, http.StatusOK, status)
		var detail model.ConversationDetail
		require.NoError(t, json.Unmarshal(body, &detail))
		assert.Len(t, detail.Messages, 2)

		status, _ = api.do(t, http.MethodDelete, path, access, nil)
		assert.Equal(t, http.StatusNoContent, status)

		status, _ = api.do(t, http.MethodGet, path, access, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("conversations are private", func(t *testing.T) {
		api := newTestAPI(t)
		ada := api.register(t, "ada")
		grace := api.register(t, "grace")

		_, body := api.do(t, http.MethodPost, "/api/chat/", ada.Tokens.Access, model.ChatRequest{Message: "mine"})
		var sent model.ChatResponse
		require.NoError(t, json.Unmarshal(body, &sent))
		path := "/api/conversations/" + strconv.FormatInt(sent.ConversationID, 10) + "/"

		status, _ := api.do(t, http.MethodGet, path, grace.Tokens.Access, nil)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = api.do(t, http.MethodDelete, path, grace.Tokens.Access, nil)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = api.do(t, http.MethodPost, "/api/chat/", grace.Tokens.Access,
			model.ChatRequest{Message: "theirs", ConversationID: &sent.ConversationID})
		assert.Equal(t, http.StatusNotFound, status)

		status, body = api.do(t, http.MethodGet, "/api/conversations/", grace.Tokens.Access, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `[]`, string(body))
	})

	t.Run("bad id", func(t *testing.T) {
		api := newTestAPI(t)
		auth := api.register(t, "ada")

		status, _ := api.do(t, http.MethodGet, "/api/conversations/abc/", auth.Tokens.Access, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("chat is rate limited per user", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) { d.ChatRateLimit = 2 })
		auth := api.register(t, "ada")

		for i := 0; i < 2; i++ {
			status, _ := api.do(t, http.MethodPost, "/api/chat/", auth.Tokens.Access, model.ChatRequest{Message: "hi"})
			require.Equal(t, http.StatusOK, status)
		}
		status, _ := api.do(t, http.MethodPost, "/api/chat/", auth.Tokens.Access, model.ChatRequest{Message: "hi"})
		assert.Equal(t, http.StatusTooManyRequests, status)

		status, _ = api.do(t, http.MethodGet, "/api/conversations/", auth.Tokens.Access, nil)
		assert.Equal(t, http.StatusOK, status, "listing is not rate limited")
	})
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) {
			d.Checks = map[string]Pinger{
				"database": PingFunc(func(ctx context.Context) error { return nil }),
				"redis":    nil,
			}
		})

		status, body := api.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(body), `"status":"ok"`)
		assert.Contains(t, string(body), `"database":"ok"`)
	})

	t.Run("degraded", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) {
			d.Checks = map[string]Pinger{
				"database": PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
			}
		})

		status, body := api.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, string(body), `"database":"unavailable"`)
	})
}
