package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName is the session cookie set on login.
const CookieName = "pilgrim_session"

// DefaultSessionTTL is the idle lifetime of a session.
const DefaultSessionTTL = 30 * time.Minute

// Session is an authenticated admin session.
type Session struct {
	ID        string
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

// SessionManager keeps sessions in memory. Every successful lookup pushes the
// expiry forward by the TTL.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive ttl selects
// DefaultSessionTTL.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the idle lifetime of sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Create starts a session for u.
func (m *SessionManager) Create(u *User) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username,
		ExpiresAt: m.now().Add(m.ttl),
	}
	m.sessions[s.ID] = s
	return *s
}

// Lookup returns the live session for id and extends its expiry.
func (m *SessionManager) Lookup(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	now := m.now()
	if !now.Before(s.ExpiresAt) {
		delete(m.sessions, id)
		return Session{}, false
	}
	s.ExpiresAt = now.Add(m.ttl)
	return *s, true
}

// Destroy ends the session for id.
func (m *SessionManager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Sweep removes expired sessions and returns how many were removed.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cookie builds the session cookie for r. Secure is set when the request came
// over TLS, directly or through a proxy.
func (m *SessionManager) Cookie(r *http.Request, id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds a cookie that clears the session cookie.
func ExpiredCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
