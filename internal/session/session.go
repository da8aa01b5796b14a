// Package session holds the authenticated identity and bearer token for the
// lifetime of a client process.
package session

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"chatsync/client/internal/models"
)

// Session is the single source of truth for "who am I" and "what token do I
// send". It is set once after a successful login, rotated on refresh and
// cleared on logout. Safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	user  *models.User
	token string
}

func New() *Session {
	return &Session{}
}

// SetCredentials installs the identity and token returned by a successful
// login or register call.
func (s *Session) SetCredentials(user *models.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user != nil {
		u := *user
		s.user = &u
	}
	s.token = token
}

// SetToken rotates the bearer token without touching the identity. Used by
// the refresh flow.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear drops both identity and token. Called on logout and when a refresh
// attempt fails for good.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
}

// CurrentUser returns a copy of the authenticated user, or nil when not
// logged in.
func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the current bearer token, empty when not logged in.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether an identity is present.
func (s *Session) Authenticated() bool {
	return s.CurrentUser() != nil
}

// ExpiresWithin reports whether the bearer token expires within d. The token
// is inspected without signature verification; only the server verifies
// tokens, the client just needs the exp claim to refresh ahead of time. A
// missing or unparseable token counts as expired, a token without an exp
// claim never expires.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	tok := s.Token()
	if tok == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < d
}
