package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/saadkhi/Side/internal/config"
	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/session"
)

const (
	refreshPath = "/auth/token/refresh/"

	// maxAuthRetries bounds how many times one call is re-issued after a 401.
	maxAuthRetries = 1
)

// TokenStore is the part of the session store the gateway needs.
type TokenStore interface {
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	ReplaceTokens(ctx context.Context, usedRefresh, accessToken, refreshToken string) error
	ClearSession(ctx context.Context) error
}

// Gateway issues API requests with the stored bearer token and recovers from
// an expired access token with at most one refresh-and-retry per call.
// Concurrent calls failing with the same token share a single refresh.
type Gateway struct {
	baseURL          string
	client           *http.Client
	store            TokenStore
	refreshTimeout   time.Duration
	refreshes        singleflight.Group
	onSessionExpired func()
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the transport client. Its Timeout bounds each attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout bounds each attempt to d, keeping the current transport.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.client = &http.Client{Timeout: d, Transport: g.client.Transport}
	}
}

// WithSessionExpiredHook registers a callback run after a failed refresh has
// cleared the session.
func WithSessionExpiredHook(fn func()) Option {
	return func(g *Gateway) { g.onSessionExpired = fn }
}

// New returns a Gateway for the API rooted at baseURL, e.g. http://host/api.
func New(baseURL string, store TokenStore, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{Timeout: 30 * time.Second},
		store:          store,
		refreshTimeout: config.RefreshTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// call is one logical API request. The body is pre-encoded so every attempt
// sends identical bytes.
type call struct {
	method string
	path   string
	body   []byte
}

type response struct {
	status int
	body   []byte
}

func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, out)
}

func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPost, path, body, out)
}

func (g *Gateway) Delete(ctx context.Context, path string) error {
	return g.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends body as JSON and decodes a 2xx JSON response into out (if non-nil).
// Failures are *errors.AppError: NETWORK_ERROR for transport problems and
// timeouts, SESSION_EXPIRED when the refresh was rejected, otherwise the
// classification of the HTTP status.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	c := call{method: method, path: path}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidInput, "could not encode request", err)
		}
		c.body = encoded
	}

	for attempt := 0; ; attempt++ {
		token := g.store.AccessToken(ctx)

		resp, err := g.send(ctx, c, token)
		if err != nil {
			return err
		}

		if resp.status != http.StatusUnauthorized {
			return decode(resp, out)
		}

		if attempt >= maxAuthRetries {
			log.Warn().
				Str("method", c.method).
				Str("path", c.path).
				Msg("request unauthorized after token refresh")
			return apperrors.FromResponse(resp.status, resp.body)
		}

		if token == "" {
			return apperrors.FromResponse(resp.status, resp.body)
		}

		if err := g.recoverToken(ctx, token); err != nil {
			return err
		}
	}
}

func (g *Gateway) send(ctx context.Context, c call, token string) (*response, error) {
	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, g.baseURL+c.path, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, "could not build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Debug().
			Err(err).
			Str("method", c.method).
			Str("path", c.path).
			Dur("elapsed", elapsed).
			Msg("api request failed")
		return nil, apperrors.Network(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Network(fmt.Errorf("read response: %w", err))
	}

	log.Debug().
		Str("method", c.method).
		Str("path", c.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("api request")

	return &response{status: resp.StatusCode, body: data}, nil
}

func decode(resp *response, out any) error {
	if resp.status < 200 || resp.status >= 300 {
		return apperrors.FromResponse(resp.status, resp.body)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeServer, "unexpected response from server", err).WithStatus(resp.status)
	}
	return nil
}

// recoverToken makes sure the access token that just failed has been replaced.
// Calls that failed with the same token join one in-flight refresh; a call
// whose token was already replaced by an earlier refresh returns immediately.
func (g *Gateway) recoverToken(ctx context.Context, staleToken string) error {
	result := g.refreshes.DoChan(staleToken, func() (any, error) {
		current := g.store.AccessToken(ctx)
		if current == "" {
			// cleared by logout or by a refresh that already failed
			return nil, apperrors.SessionExpired(errors.New("session cleared before refresh"))
		}
		if current != staleToken {
			return nil, nil
		}
		return nil, g.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return apperrors.Network(ctx.Err())
	case res := <-result:
		return res.Err
	}
}

func (g *Gateway) refresh(ctx context.Context) error {
	refreshToken := g.store.RefreshToken(ctx)
	if refreshToken == "" {
		return g.expire(ctx, errors.New("no refresh token stored"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.refreshTimeout)
	defer cancel()

	payload, err := json.Marshal(model.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "could not encode refresh request", err)
	}

	// The refresh call goes out without a bearer token and never re-enters
	// the retry loop.
	resp, err := g.send(ctx, call{method: http.MethodPost, path: refreshPath, body: payload}, "")
	if err != nil {
		log.Warn().Err(err).Msg("token refresh could not reach the server")
		return err
	}

	if resp.status >= http.StatusInternalServerError {
		log.Warn().Int("status", resp.status).Msg("token refresh failed on the server")
		return apperrors.FromResponse(resp.status, resp.body)
	}

	if resp.status < 200 || resp.status >= 300 {
		log.Warn().Int("status", resp.status).Msg("token refresh rejected, clearing session")
		return g.expire(ctx, apperrors.FromResponse(resp.status, resp.body))
	}

	var tokens model.RefreshResponse
	if err := json.Unmarshal(resp.body, &tokens); err != nil || tokens.Access == "" {
		log.Warn().Err(err).Msg("token refresh returned no access token, clearing session")
		return g.expire(ctx, errors.New("refresh response without access token"))
	}

	err = g.store.ReplaceTokens(ctx, refreshToken, tokens.Access, tokens.Refresh)
	switch {
	case errors.Is(err, session.ErrNoSession):
		log.Info().Msg("session cleared during token refresh, discarding new token")
		return apperrors.SessionExpired(err)
	case errors.Is(err, session.ErrSessionChanged):
		// a new login replaced the session; retry with its token
		log.Info().Msg("session replaced during token refresh, discarding new token")
		return nil
	case err != nil:
		return apperrors.Wrap(apperrors.ErrCodeInternal, "could not store refreshed token", err)
	}

	log.Debug().Bool("rotated", tokens.Refresh != "").Msg("access token refreshed")
	return nil
}

func (g *Gateway) expire(ctx context.Context, cause error) error {
	if err := g.store.ClearSession(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear session after refresh failure")
	}
	if g.onSessionExpired != nil {
		g.onSessionExpired()
	}
	return apperrors.SessionExpired(cause)
}
