package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/auth"
)

type sessionKey struct{}

// SessionFromContext returns the session attached by requireSession.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(auth.Session)
	return s, ok
}

// requireSession rejects requests without a live session cookie. The cookie
// is re-issued on every authenticated request so its lifetime rolls with
// the server-side expiry.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(auth.CookieName)
		if err != nil || c.Value == "" {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		sess, ok := s.sessions.Lookup(c.Value)
		if !ok {
			http.SetCookie(w, auth.ExpiredCookie(r))
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		http.SetCookie(w, s.sessions.Cookie(r, sess.ID))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin throttles attempts per client address and per username, so
// neither rotating addresses nor rotating usernames buys extra guesses.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow("ip:" + clientIP(r)) {
		tooManyLogins(w)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if !s.limiter.Allow("user:" + auth.NormalizeUsername(req.Username)) {
		s.log.Warn("login throttled", zap.String("username", req.Username), zap.String("ip", clientIP(r)))
		tooManyLogins(w)
		return
	}

	u, err := auth.Authenticate(r.Context(), s.users, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.log.Info("login rejected", zap.String("username", req.Username), zap.String("ip", clientIP(r)))
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	if err != nil {
		s.log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	sess := s.sessions.Create(u)
	http.SetCookie(w, s.sessions.Cookie(r, sess.ID))
	s.log.Info("login", zap.String("username", u.Username))
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func tooManyLogins(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "10")
	writeError(w, http.StatusTooManyRequests, msgTooManyLogins)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.CookieName); err == nil {
		s.sessions.Destroy(c.Value)
	}
	http.SetCookie(w, auth.ExpiredCookie(r))
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// clientIP strips the port from RemoteAddr. With TrustProxy set, RealIP has
// already replaced it with the forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
