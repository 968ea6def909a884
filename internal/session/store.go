package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/model"
)

var (
	// ErrNoSession is returned by token updates when nothing is stored, for
	// example after a logout that raced a refresh.
	ErrNoSession = errors.New("session: no session stored")
	// ErrSessionChanged is returned by ReplaceTokens when the refresh token
	// it was given is no longer the stored one.
	ErrSessionChanged = errors.New("session: refresh token no longer current")
)

// Backend persists a single session record.
// Load returns nil, nil when nothing is stored.
type Backend interface {
	Load(ctx context.Context) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context) error
}

// Store is the single read/write surface for the authenticated identity and
// its token pair. Reads are served from memory after the first load; every
// write goes through to the backend before it becomes visible.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	current *model.Session
	loaded  bool
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) snapshot(ctx context.Context) *model.Session {
	s.mu.RLock()
	if s.loaded {
		cur := s.current
		s.mu.RUnlock()
		return cur
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		sess, err := s.backend.Load(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("session: stored session unreadable, treating as logged out")
			sess = nil
		}
		s.current = sess
		s.loaded = true
	}
	return s.current
}

// SetSession persists user and both tokens, replacing any previous session.
func (s *Store) SetSession(ctx context.Context, user model.User, accessToken, refreshToken string) error {
	u := user
	next := &model.Session{
		User:         &u,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Save(ctx, next); err != nil {
		return err
	}
	s.current = next
	s.loaded = true
	return nil
}

// SetUser replaces the stored profile, keeping the tokens.
func (s *Store) SetUser(ctx context.Context, user model.User) error {
	s.snapshot(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := user
	next := *s.current
	next.User = &u
	if err := s.backend.Save(ctx, &next); err != nil {
		return err
	}
	s.current = &next
	return nil
}

// UpdateTokens replaces the access token. The refresh token is only replaced
// when a non-empty one is given, i.e. when the server rotated it. It never
// creates a session.
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string) error {
	s.snapshot(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTokensLocked(ctx, accessToken, refreshToken)
}

// ReplaceTokens is UpdateTokens for the result of a refresh made with
// usedRefresh. It fails with ErrSessionChanged if the session was replaced
// or the token rotated in the meantime.
func (s *Store) ReplaceTokens(ctx context.Context, usedRefresh, accessToken, refreshToken string) error {
	s.snapshot(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.RefreshToken != usedRefresh {
		return ErrSessionChanged
	}
	return s.updateTokensLocked(ctx, accessToken, refreshToken)
}

func (s *Store) updateTokensLocked(ctx context.Context, accessToken, refreshToken string) error {
	if s.current == nil {
		return ErrNoSession
	}
	next := *s.current
	next.AccessToken = accessToken
	if refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	if err := s.backend.Save(ctx, &next); err != nil {
		return err
	}
	s.current = &next
	return nil
}

// ClearSession removes the user and both tokens. The in-memory session is
// only dropped once the backend delete succeeded.
func (s *Store) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(ctx); err != nil {
		return err
	}
	s.current = nil
	s.loaded = true
	return nil
}

// IsAuthenticated reports whether an access token is stored. The token is not
// validated; an expired token is discovered when it is used.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.snapshot(ctx).IsAuthenticated()
}

func (s *Store) StoredUser(ctx context.Context) *model.User {
	sess := s.snapshot(ctx)
	if sess == nil || sess.User == nil {
		return nil
	}
	u := *sess.User
	return &u
}

func (s *Store) AccessToken(ctx context.Context) string {
	if sess := s.snapshot(ctx); sess != nil {
		return sess.AccessToken
	}
	return ""
}

func (s *Store) RefreshToken(ctx context.Context) string {
	if sess := s.snapshot(ctx); sess != nil {
		return sess.RefreshToken
	}
	return ""
}
