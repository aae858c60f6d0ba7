// Package session owns the client's authenticated identity: loading it
// from local storage or a one-shot handoff, obtaining it through the
// auth endpoints, and clearing it again.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pindapp/pind/internal/client"
	"github.com/pindapp/pind/internal/domain"
	"github.com/pindapp/pind/internal/logging"
	"github.com/pindapp/pind/internal/store"
)

// Store holds the current session and keeps it in sync with durable
// storage. It is passed explicitly to everything that needs the token;
// there is no package-level session. Safe for concurrent use; the
// bridge server's handlers read and replace the session from separate
// goroutines.
type Store struct {
	api     *client.Client
	storage *store.Store

	mu      sync.Mutex
	current *domain.Session
}

// New creates a session store backed by the given API client and local
// storage.
func New(api *client.Client, storage *store.Store) *Store {
	return &Store{api: api, storage: storage}
}

// Initialize loads a previously persisted session. Malformed stored
// data is treated as no session, never as a failure.
func (s *Store) Initialize() {
	sess, err := s.storage.LoadSession()
	if err != nil {
		logging.Warn().Err(err).Msg("could not load stored session")
		return
	}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// ConsumeHandoff accepts the one-shot token/user_info parameter pair an
// external agent can hand the client on startup. Both must be present
// and well-formed; anything else is dropped silently. On success the
// session is persisted, so the caller must make sure the parameters are
// not seen again.
func (s *Store) ConsumeHandoff(values url.Values) bool {
	token := values.Get("token")
	userInfo := values.Get("user_info")
	if token == "" || userInfo == "" {
		return false
	}

	var user domain.User
	if err := json.Unmarshal([]byte(userInfo), &user); err != nil || user.Email == "" {
		logging.Warn().Msg("ignoring malformed session handoff")
		return false
	}

	sess := domain.Session{Token: token, TokenType: "Bearer", User: user}
	if err := s.storage.SaveSession(sess); err != nil {
		logging.Warn().Err(err).Msg("could not persist handoff session")
		return false
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	logging.Info().Str("email", user.Email).Msg("session accepted from handoff")
	return true
}

// Login authenticates and persists the resulting session.
func (s *Store) Login(ctx context.Context, email, password string) (domain.Session, error) {
	sess, err := s.api.Login(ctx, email, password)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.storage.SaveSession(sess); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return sess, nil
}

// Register creates an account and immediately logs in with the same
// credentials; registration alone does not yield a token.
func (s *Store) Register(ctx context.Context, email, password string) (domain.Session, error) {
	if err := s.api.Register(ctx, email, password); err != nil {
		return domain.Session{}, err
	}
	return s.Login(ctx, email, password)
}

// Logout clears the in-memory session and every persisted field. It
// cannot fail; a storage error is logged and the memory state is
// cleared regardless.
func (s *Store) Logout() {
	if err := s.storage.ClearSession(); err != nil {
		logging.Warn().Err(err).Msg("could not clear stored session")
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// IsAuthenticated reports whether both a token and a user are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.Token != "" && s.current.User.Email != ""
}

// Current returns a copy of the active session, or nil.
func (s *Store) Current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	sess := *s.current
	return &sess
}

// Token returns the bearer token, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// ExpiresAt peeks at the token's exp claim without verifying the
// signature; the client has no key and only wants the timestamp for
// display. Returns the zero time when there is no readable claim.
func (s *Store) ExpiresAt() time.Time {
	token := s.Token()
	if token == "" {
		return time.Time{}
	}
	tok, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
