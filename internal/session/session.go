// Package session holds the mutable authentication state shared by every
// call to the asset platform: the auth cookie, the rotating CSRF token and
// the cached authenticated user id.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	// ErrCookieFileEmpty indicates the cookie file exists but holds no value.
	ErrCookieFileEmpty = errors.New("cookie file is empty")
	// ErrNoCookie indicates an authenticated operation was attempted without a cookie.
	ErrNoCookie = errors.New("platform cookie not available")
	// ErrNoUserID indicates the authenticated user id has not been resolved yet.
	ErrNoUserID = errors.New("authenticated user id not available")
)

// Session is shared by concurrent requests. Writes only happen at startup and
// when a 403 response supplies a fresh CSRF token; last writer wins, a stale
// token costs one extra retry.
type Session struct {
	mu     sync.RWMutex
	cookie string
	csrf   string
	userID int64
}

// New creates a Session holding the given auth cookie. The cookie may be
// empty; authenticated operations then fail closed.
func New(cookie string) *Session {
	return &Session{
		cookie: cookie,
	}
}

// Cookie returns the auth cookie.
func (s *Session) Cookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cookie
}

// CSRF returns the current CSRF token, empty until the platform issues one.
func (s *Session) CSRF() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.csrf
}

// SetCSRF replaces the CSRF token with a freshly issued one.
func (s *Session) SetCSRF(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.csrf = token
}

// UserID returns the cached authenticated user id and whether it is set.
func (s *Session) UserID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userID, s.userID != 0
}

// SetUserID caches the authenticated user id resolved at startup.
func (s *Session) SetUserID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = id
}

// RequireAuth verifies the preconditions for a network-facing operation:
// a non-empty cookie, and when withUser is set, a resolved user id.
func (s *Session) RequireAuth(withUser bool) error {
	if s.Cookie() == "" {
		return ErrNoCookie
	}

	if withUser {
		_, ok := s.UserID()
		if !ok {
			return ErrNoUserID
		}
	}

	return nil
}

// LoadCookieFile reads the persisted auth cookie from path and trims
// surrounding whitespace.
func LoadCookieFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read cookie file '%s': %w", path, err)
	}

	cookie := strings.TrimSpace(string(data))
	if cookie == "" {
		return "", fmt.Errorf("%w: %s", ErrCookieFileEmpty, path)
	}

	return cookie, nil
}
