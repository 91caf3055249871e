// Package api serves the pilgrim site catalog over HTTP: the public GeoJSON
// read endpoints, the session-guarded write endpoints and the admin login.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/pilgrim-map/internal/auth"
	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// maxBodyBytes caps feature and login request bodies.
const maxBodyBytes = 10 << 20

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins             []string
	RequireSessionForWrites bool
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	catalog  *catalog.Service
	users    auth.UserStore
	sessions *auth.SessionManager
	limiter  *auth.LoginLimiter
	opts     Options
	log      *zap.Logger
}

// NewServer creates a Server. sessions and limiter are shared with the
// caller so it can sweep them in the background.
func NewServer(svc *catalog.Service, users auth.UserStore, sessions *auth.SessionManager, limiter *auth.LoginLimiter, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		catalog:  svc,
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if s.opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: !containsWildcard(s.opts.CORSOrigins),
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/geojson", s.handleListFeatures)
		r.Get("/features/{id}", s.handleGetFeature)

		r.Group(func(r chi.Router) {
			if s.opts.RequireSessionForWrites {
				r.Use(s.requireSession)
			}
			r.Post("/features", s.handleCreateFeature)
			r.Put("/features/{id}", s.handleUpdateFeature)
			r.Delete("/features/{id}", s.handleDeleteFeature)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger logs one line per request once the response is written.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
